// Package commands implements the semcraft subcommands.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/adapter"
	"github.com/leapstack-labs/semcraft/internal/cli/output"
	"github.com/leapstack-labs/semcraft/internal/config"
	"github.com/leapstack-labs/semcraft/internal/state"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

type configKey struct{}
type rendererKey struct{}
type loggerKey struct{}

// WithConfig stores the config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext retrieves the config, falling back to defaults.
func ConfigFromContext(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg, _ := config.Load("", nil)
	return cfg
}

// WithRenderer stores the renderer in the context.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// RendererFromContext retrieves the renderer, falling back to stdout.
func RendererFromContext(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext retrieves the logger, falling back to a no-op one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Store    *state.SQLiteStore
	Session  *workflow.Session
}

// NewCommandContext opens the session store and loads the most recent
// session, creating one when the store is empty. Returns the context
// and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutStore(cmd)

	store := state.NewSQLiteStore()
	if err := store.Open(cmdCtx.Cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, nil, err
	}

	sess, err := loadOrCreateSession(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cmdCtx.Store = store
	cmdCtx.Session = sess

	cleanup := func() {
		_ = store.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutStore builds a CommandContext without opening
// the session store. Useful for commands that don't touch sessions.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	return &CommandContext{
		Cfg:      ConfigFromContext(ctx),
		Logger:   LoggerFromContext(ctx),
		Renderer: RendererFromContext(ctx),
	}
}

// SaveSession persists the current session state.
func (c *CommandContext) SaveSession() error {
	if c.Store == nil || c.Session == nil {
		return nil
	}
	rec, err := state.Record(c.Session)
	if err != nil {
		return err
	}
	return c.Store.SaveSession(rec)
}

func loadOrCreateSession(store *state.SQLiteStore) (*workflow.Session, error) {
	rec, err := store.LatestSession()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return workflow.NewSession(), nil
	}
	sess, err := rec.Session()
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// OpenConnection connects the configured warehouse adapter and returns
// the adapter together with its database handle.
func OpenConnection(ctx context.Context, cfg *config.Config) (adapter.Adapter, *sql.DB, error) {
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
