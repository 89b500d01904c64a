package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// stagePayload is one wizard stage with its gate state.
type stagePayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Unlocked bool   `json:"unlocked"`
}

// statusPayload describes the whole session to the browser.
type statusPayload struct {
	Session       string         `json:"session"`
	Stages        []stagePayload `json:"stages"`
	Destination   string         `json:"destination,omitempty"`
	Draft         bool           `json:"draft"`
	DraftName     string         `json:"draft_name,omitempty"`
	Validated     bool           `json:"validated"`
	UploadEnabled bool           `json:"upload_enabled"`
}

type destinationPayload struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Stage    string `json:"stage"`
}

type tableRefPayload struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
}

type draftPayload struct {
	Name   string            `json:"name"`
	Tables []tableRefPayload `json:"tables"`
	YAML   string            `json:"yaml"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, errorPayload{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status(sess))
}

func (s *Server) status(sess *workflow.Session) statusPayload {
	out := statusPayload{
		Session:       sess.ID(),
		Validated:     sess.Validated(),
		UploadEnabled: sess.UploadEnabled(),
	}
	for i, stage := range workflow.Stages {
		unlocked := i == 0 || sess.NextUnlocked(workflow.Stages[i-1].ID)
		out.Stages = append(out.Stages, stagePayload{
			ID:       string(stage.ID),
			Title:    stage.Title,
			Unlocked: unlocked,
		})
	}
	if dest := sess.Destination(); dest != nil {
		out.Destination = dest.String()
	}
	if draft := sess.Draft(); draft.Exists() {
		out.Draft = true
		out.DraftName = draft.Name
	}
	return out
}

func (s *Server) handleSettingsCheck(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	checkErr := s.cfg.CheckConnection()
	sess.MarkSettingsChecked(checkErr == nil)

	if checkErr != nil {
		writeError(w, http.StatusPreconditionFailed, "%v", checkErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *Server) handleSetDestination(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	var in destinationPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "decode destination: %v", err)
		return
	}

	if err := sess.SetDestination(in.Database, in.Schema, in.Stage); err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			// The rejected resubmission dropped the stored destination.
			if perr := s.persist(sess); perr != nil {
				writeError(w, http.StatusInternalServerError, "save session: %v", perr)
				return
			}
			writeError(w, http.StatusUnprocessableEntity, "%v", verr)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	if err := s.persist(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status(sess))
}

func (s *Server) handleClearDestination(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	sess.ClearDestination()
	if err := s.persist(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status(sess))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	draft := sess.Draft()
	if !draft.Exists() {
		writeError(w, http.StatusNotFound, "no draft in this session")
		return
	}

	text, err := model.ToYAML(draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "serialize draft: %v", err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// handlePostDraft creates or replaces the draft. A request with a
// "yaml" body imports an existing model; otherwise "name" and "tables"
// start a draft from scratch.
func (s *Server) handlePostDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	var in draftPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "decode draft: %v", err)
		return
	}

	var draft *model.Draft
	switch {
	case in.YAML != "":
		draft, err = model.FromYAML(in.YAML)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
		if !draft.Exists() {
			writeError(w, http.StatusUnprocessableEntity, "imported model has no name")
			return
		}

	case strings.TrimSpace(in.Name) != "":
		draft = &model.Draft{Name: strings.TrimSpace(in.Name)}
		for _, ref := range in.Tables {
			if ref.Database == "" || ref.Schema == "" || ref.Table == "" {
				writeError(w, http.StatusUnprocessableEntity, "table reference must name database, schema and table")
				return
			}
			draft.Tables = append(draft.Tables, model.Table{
				Name: strings.ToLower(ref.Table),
				BaseTable: model.TableRef{
					Database: ref.Database,
					Schema:   ref.Schema,
					Table:    ref.Table,
				},
			})
		}

	default:
		writeError(w, http.StatusBadRequest, "either yaml or name is required")
		return
	}

	sess.SetDraft(draft)
	if err := s.persist(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status(sess))
}

func (s *Server) handleCurate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	draft := sess.Draft()
	if !draft.Exists() {
		writeError(w, http.StatusConflict, "no draft to refine")
		return
	}
	text, err := model.ToYAML(draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "serialize draft: %v", err)
		return
	}

	token, err := sess.BeginCuration()
	if err != nil {
		if errors.Is(err, workflow.ErrCurationInFlight) {
			writeError(w, http.StatusConflict, "a refinement is already running for this session")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	result := s.refine(r.Context(), text)
	if !result.Succeeded() {
		sess.EndCuration(token)
		writeError(w, http.StatusBadGateway, "%s", result.Err)
		return
	}

	revised, err := model.FromYAML(result.Revised)
	if err != nil {
		sess.EndCuration(token)
		writeError(w, http.StatusBadGateway, "model returned unparseable yaml: %v", err)
		return
	}

	if err := sess.ApplyCuration(token, revised); err != nil {
		// Cancelled or superseded while the completion was running.
		s.logger.Debug("curation result discarded", "session", sess.ID(), "error", err)
		writeError(w, http.StatusConflict, "%v", err)
		return
	}

	if err := s.persist(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": result.Revised})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	draft := sess.Draft()
	if !draft.Exists() {
		writeError(w, http.StatusConflict, "no draft to validate")
		return
	}

	// Round-trip the draft to prove it serializes cleanly.
	text, err := model.ToYAML(draft)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "serialize draft: %v", err)
		return
	}
	if _, err := model.FromYAML(text); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	dest := sess.Destination()
	if dest == nil || !dest.Complete() {
		writeError(w, http.StatusConflict, "destination is not configured")
		return
	}
	if err := s.stash(r.Context(), *dest, draft.Clone()); err != nil {
		writeError(w, http.StatusBadGateway, "stash validated copy: %v", err)
		return
	}

	if err := sess.MarkValidated(); err != nil {
		writeError(w, http.StatusConflict, "%v", err)
		return
	}
	if err := s.persist(sess); err != nil {
		writeError(w, http.StatusInternalServerError, "save session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, s.status(sess))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load session: %v", err)
		return
	}

	if !sess.UploadEnabled() {
		snap := sess.Snapshot()
		switch {
		case !snap.DraftExists:
			writeError(w, http.StatusConflict, "no draft to upload")
		case snap.Destination == nil || !snap.Destination.Complete():
			writeError(w, http.StatusConflict, "destination is not configured")
		default:
			writeError(w, http.StatusConflict, "draft has not been validated")
		}
		return
	}

	draft := sess.Draft()
	dest := sess.Destination()
	fileName := draft.FileName()

	if err := s.upload(r.Context(), *dest, draft.Clone(), fileName); err != nil {
		writeError(w, http.StatusBadGateway, "upload model: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"file":  fileName,
		"stage": dest.String(),
	})
}

// handleEvents streams refresh pings to the browser as server-sent
// events. A ping means session state changed and /api/status should be
// re-fetched.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := s.pings.subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if _, err := fmt.Fprint(w, "data: refresh\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
