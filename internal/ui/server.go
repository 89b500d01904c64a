// Package ui hosts the authoring wizard as a local web application.
// Every browser gets its own isolated wizard session, tracked by a
// cookie and persisted through the session store.
package ui

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/semcraft/internal/adapter"
	"github.com/leapstack-labs/semcraft/internal/config"
	"github.com/leapstack-labs/semcraft/internal/curate"
	"github.com/leapstack-labs/semcraft/internal/docs"
	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/state"
	"github.com/leapstack-labs/semcraft/internal/store"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

const sessionCookie = "semcraft_session"

// RefineFunc runs one curation attempt over the serialized draft.
type RefineFunc func(ctx context.Context, draftText string) curate.Result

// StashFunc uploads the temporary validation copy of the draft.
type StashFunc func(ctx context.Context, dest workflow.Destination, draft *model.Draft) error

// UploadFunc uploads the final artifact under fileName.
type UploadFunc func(ctx context.Context, dest workflow.Destination, draft *model.Draft, fileName string) error

// Option customizes a Server.
type Option func(*Server)

// WithRefiner replaces the warehouse-backed curation pipeline.
func WithRefiner(fn RefineFunc) Option {
	return func(s *Server) { s.refine = fn }
}

// WithStasher replaces the warehouse-backed validation stash.
func WithStasher(fn StashFunc) Option {
	return func(s *Server) { s.stash = fn }
}

// WithUploader replaces the warehouse-backed artifact upload.
func WithUploader(fn UploadFunc) Option {
	return func(s *Server) { s.upload = fn }
}

// Server is the wizard web server.
type Server struct {
	cfg          *config.Config
	store        *state.SQLiteStore
	sessionStore *sessions.CookieStore
	logger       *slog.Logger
	pings        *pinger

	refine RefineFunc
	stash  StashFunc
	upload UploadFunc

	mu       sync.Mutex
	sessions map[string]*workflow.Session
}

// NewServer creates a wizard server backed by the given session store.
func NewServer(cfg *config.Config, st *state.SQLiteStore, logger *slog.Logger, opts ...Option) *Server {
	cookieStore := sessions.NewCookieStore([]byte(cookieSecret(cfg)))
	cookieStore.MaxAge(86400 * 30)
	cookieStore.Options.Path = "/"
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.SameSite = http.SameSiteLaxMode
	// The server binds localhost over plain HTTP; a Secure cookie would
	// never be sent back and every request would mint a new session.
	cookieStore.Options.Secure = false

	s := &Server{
		cfg:          cfg,
		store:        st,
		sessionStore: cookieStore,
		logger:       logger,
		pings:        newPinger(),
		sessions:     make(map[string]*workflow.Session),
	}
	s.refine = defaultRefiner(cfg)
	s.stash = defaultStasher(cfg)
	s.upload = defaultUploader(cfg)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/status", s.handleStatus)
		r.Post("/settings/check", s.handleSettingsCheck)
		r.Post("/destination", s.handleSetDestination)
		r.Delete("/destination", s.handleClearDestination)
		r.Get("/draft", s.handleGetDraft)
		r.Post("/draft", s.handlePostDraft)
		r.Post("/curate", s.handleCurate)
		r.Post("/validate", s.handleValidate)
		r.Post("/upload", s.handleUpload)
	})

	return r
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("starting wizard server", "addr", fmt.Sprintf("http://localhost:%d", port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.watchState(egctx)
	})

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down wizard server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchState watches the session database for writes made by the CLI
// while the web server is up, so connected browsers can refresh.
func (s *Server) watchState(ctx context.Context) error {
	if s.cfg.StatePath == ":memory:" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.cfg.StatePath)); err != nil {
		s.logger.Error("failed to watch state directory", "error", err)
		// Keep serving without change notifications.
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(s.cfg.StatePath) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("session state changed", "file", event.Name)
				s.pings.ping()
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// session resolves the workflow session for the request, creating one
// on first contact and binding it to the browser via cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*workflow.Session, error) {
	cookie, err := s.sessionStore.Get(r, sessionCookie)
	if err != nil {
		// A stale or tampered cookie falls back to a fresh session.
		cookie, _ = s.sessionStore.New(r, sessionCookie)
	}

	id, _ := cookie.Values["id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess, nil
		}
		rec, err := s.store.GetSession(id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			sess, err := rec.Session()
			if err != nil {
				return nil, err
			}
			s.sessions[sess.ID()] = sess
			return sess, nil
		}
	}

	sess := workflow.NewSession()
	s.sessions[sess.ID()] = sess

	cookie.Values["id"] = sess.ID()
	if err := cookie.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session cookie: %w", err)
	}
	return sess, nil
}

// persist writes the session back to the store and pings listeners.
func (s *Server) persist(sess *workflow.Session) error {
	rec, err := state.Record(sess)
	if err != nil {
		return err
	}
	if err := s.store.SaveSession(rec); err != nil {
		return err
	}
	s.pings.ping()
	return nil
}

// cookieSecret returns the configured cookie signing secret, or a
// process-local random one when none is configured.
func cookieSecret(cfg *config.Config) string {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "semcraft-dev-secret"
	}
	return hex.EncodeToString(buf)
}

// connectAdapter opens a warehouse connection from the configured
// settings.
func connectAdapter(ctx context.Context, cfg *config.Config) (adapter.Adapter, *sql.DB, error) {
	adapterCfg := adapter.Config{
		Type:     cfg.Connection.Type,
		Path:     cfg.Connection.Path,
		Host:     cfg.Connection.Host,
		Port:     cfg.Connection.Port,
		Database: cfg.Connection.Database,
		Username: cfg.Connection.User,
		Password: cfg.Connection.Password,
		Schema:   cfg.Connection.Schema,
	}
	a, err := adapter.New(adapterCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Connect(ctx, adapterCfg); err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.Connection.Type, err)
	}
	return a, a.DB(), nil
}

func defaultRefiner(cfg *config.Config) RefineFunc {
	return func(ctx context.Context, draftText string) curate.Result {
		a, db, err := connectAdapter(ctx, cfg)
		if err != nil {
			return curate.Result{Err: "Error encountered: " + err.Error()}
		}
		defer a.Close()

		pipeline := curate.NewPipeline(
			docs.NewFetcher(),
			curate.NewCompletionClient(cfg.Connection.Namespace),
			db,
		)
		return pipeline.Refine(ctx, curate.Request{
			DocsURL:    cfg.Curation.DocsURL,
			SectionIDs: cfg.Curation.Sections,
			Draft:      draftText,
			Model:      cfg.Curation.Model,
		})
	}
}

func defaultStasher(cfg *config.Config) StashFunc {
	return func(ctx context.Context, dest workflow.Destination, draft *model.Draft) error {
		a, db, err := connectAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return store.NewStage(db, dest).StashValidated(ctx, draft)
	}
}

func defaultUploader(cfg *config.Config) UploadFunc {
	return func(ctx context.Context, dest workflow.Destination, draft *model.Draft, fileName string) error {
		a, db, err := connectAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return store.NewStage(db, dest).UploadModel(ctx, draft, fileName)
	}
}
