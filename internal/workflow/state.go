package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/semcraft/internal/model"
)

// Destination is the three-part qualified name of the remote write
// location for the finished model. Identity is the full triple.
type Destination struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Stage    string `yaml:"stage"`
}

// String returns the dotted form of the destination.
func (d Destination) String() string {
	return fmt.Sprintf("%s.%s.%s", d.Database, d.Schema, d.Stage)
}

// Complete reports whether all three parts are non-empty.
func (d Destination) Complete() bool {
	return strings.TrimSpace(d.Database) != "" &&
		strings.TrimSpace(d.Schema) != "" &&
		strings.TrimSpace(d.Stage) != ""
}

// ValidationError reports submission of a destination or draft with
// required fields missing. It blocks the responsible transition locally
// and never propagates past the gate.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required fields are empty: %s", strings.Join(e.Missing, ", "))
}

// ErrCurationInFlight is returned when a second curation attempt is
// started while one is already pending for the session.
var ErrCurationInFlight = errors.New("a curation attempt is already in flight")

// ErrCurationSuperseded is returned when a curation result arrives after
// the attempt was cancelled or replaced. The result must be discarded,
// not applied.
var ErrCurationSuperseded = errors.New("curation attempt was cancelled or superseded")

// Session is the session-scoped workflow state: the draft model, the
// destination, the validated flag and the derived stage gates. It is
// passed explicitly into every operation instead of living as ambient
// global state, and is never shared across sessions.
type Session struct {
	id string

	mu              sync.Mutex
	draft           *model.Draft
	destination     *Destination
	validated       bool
	settingsReady   bool
	curationGen     int
	curationPending bool
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{id: uuid.New().String()}
}

// Restore rebuilds a session from persisted state. Used by the session
// store when a user returns to an earlier session.
func Restore(id string, draft *model.Draft, dest *Destination, validated bool) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{id: id, draft: draft, destination: dest, validated: validated}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current gating view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	var dest *Destination
	if s.destination != nil {
		d := *s.destination
		dest = &d
	}
	return Snapshot{
		SettingsReady: s.settingsReady,
		Destination:   dest,
		DraftExists:   s.draft.Exists(),
		Validated:     s.validated,
	}
}

// MarkSettingsChecked records the result of the connection settings
// check performed on the Getting started stage.
func (s *Session) MarkSettingsChecked(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsReady = ok
}

// SetDestination submits the destination triple. A submission with
// empty parts returns a ValidationError and drops any stored
// destination: an explicit resubmission always speaks for the user,
// so a complete triple may not survive an incomplete one. Upload and
// the dependent stages re-lock until a complete triple is submitted
// again.
func (s *Session) SetDestination(database, schema, stage string) error {
	dest := Destination{Database: database, Schema: schema, Stage: stage}
	var missing []string
	if strings.TrimSpace(database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(schema) == "" {
		missing = append(missing, "schema")
	}
	if strings.TrimSpace(stage) == "" {
		missing = append(missing, "stage")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(missing) > 0 {
		s.destination = nil
		return &ValidationError{Missing: missing}
	}
	s.destination = &dest
	return nil
}

// ClearDestination drops the destination, re-locking the stages that
// depend on it.
func (s *Session) ClearDestination() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destination = nil
}

// Destination returns a copy of the destination, or nil if unset.
func (s *Session) Destination() *Destination {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destination == nil {
		return nil
	}
	d := *s.destination
	return &d
}

// supersedeCurationLocked invalidates the token of any pending
// curation attempt. Called under s.mu by every draft mutation so a
// late result cannot clobber the manual edit it raced with.
func (s *Session) supersedeCurationLocked() {
	if s.curationPending {
		s.curationGen++
		s.curationPending = false
	}
}

// SetDraft replaces the draft outright. Starting a new model replaces,
// never merges, the prior draft, and any prior validation no longer
// applies. A curation attempt still in flight is superseded.
func (s *Session) SetDraft(d *model.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeCurationLocked()
	s.draft = d.Clone()
	s.validated = false
}

// MutateDraft applies an editing operation to the draft. Any mutation
// after a successful validation resets the validated flag: validation is
// a snapshot guarantee, not a persistent property. A curation attempt
// still in flight is superseded.
func (s *Session) MutateDraft(fn func(*model.Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return &ValidationError{Missing: []string{"draft"}}
	}
	s.supersedeCurationLocked()
	fn(s.draft)
	s.validated = false
	return nil
}

// Draft returns a deep copy of the draft, or nil if none exists.
// Callers can inspect and render the copy freely without touching
// session state.
func (s *Session) Draft() *model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// MarkValidated records a successful validation of the current draft.
func (s *Session) MarkValidated() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.draft.Exists() {
		return &ValidationError{Missing: []string{"draft"}}
	}
	s.validated = true
	return nil
}

// Validated reports whether the current draft passed its last
// validation check and has not been edited since.
func (s *Session) Validated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated
}

// NextUnlocked reports whether the stage after the given one is
// reachable, re-evaluated against the live state on every call.
func (s *Session) NextUnlocked(id StageID) bool {
	return NextUnlocked(id, s.Snapshot())
}

// UploadEnabled re-checks the full upload precondition.
func (s *Session) UploadEnabled() bool {
	return UploadEnabled(s.Snapshot())
}

// BeginCuration reserves the session's single curation slot and returns
// a token identifying the attempt. Only one attempt may be in flight at
// a time.
func (s *Session) BeginCuration() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curationPending {
		return 0, ErrCurationInFlight
	}
	s.curationGen++
	s.curationPending = true
	return s.curationGen, nil
}

// CancelCuration abandons the pending attempt. A result arriving later
// with the stale token is discarded; the remote call itself may still
// have consumed quota.
func (s *Session) CancelCuration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curationPending {
		s.curationGen++
		s.curationPending = false
	}
}

// EndCuration releases the curation slot without applying a result,
// for attempts that finished in failure.
func (s *Session) EndCuration(token int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curationPending && token == s.curationGen {
		s.curationPending = false
	}
}

// ApplyCuration installs a revised draft produced by the attempt
// identified by token. Stale tokens are rejected so a cancelled
// attempt's late result can never clobber manual edits.
func (s *Session) ApplyCuration(token int, revised *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.curationPending || token != s.curationGen {
		return ErrCurationSuperseded
	}
	s.curationPending = false
	s.draft = revised.Clone()
	s.validated = false
	return nil
}
