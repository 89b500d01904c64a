// Package tui implements the interactive authoring wizard.
//
// It uses bubbletea's Elm architecture: the Wizard model holds all
// state, Update reacts to messages, and View renders the current
// stage. Stages unlock strictly in order; keys never navigate into a
// locked stage.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/semcraft/internal/config"
	"github.com/leapstack-labs/semcraft/internal/curate"
	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// RefineFunc runs one curation attempt over the serialized draft.
type RefineFunc func(ctx context.Context, draftText string, onState func(curate.State)) curate.Result

// StashFunc uploads the temporary validation copy of the draft.
type StashFunc func(ctx context.Context, dest workflow.Destination, draft *model.Draft) error

// UploadFunc uploads the final artifact under fileName.
type UploadFunc func(ctx context.Context, dest workflow.Destination, draft *model.Draft, fileName string) error

// Option customizes Wizard construction, mainly for tests.
type Option func(*Wizard)

// WithRefiner overrides the curation runner.
func WithRefiner(fn RefineFunc) Option {
	return func(w *Wizard) {
		if fn != nil {
			w.refine = fn
		}
	}
}

// WithStasher overrides the validation stash uploader.
func WithStasher(fn StashFunc) Option {
	return func(w *Wizard) {
		if fn != nil {
			w.stash = fn
		}
	}
}

// WithUploader overrides the artifact uploader.
func WithUploader(fn UploadFunc) Option {
	return func(w *Wizard) {
		if fn != nil {
			w.upload = fn
		}
	}
}

// Messages emitted by background commands.

type curationDoneMsg struct {
	token  int
	result curate.Result
}

type stashDoneMsg struct{ err error }

type uploadDoneMsg struct {
	fileName string
	err      error
}

// storeField indexes the destination inputs.
const (
	fieldDatabase = iota
	fieldSchema
	fieldStage
	storeFieldCount
)

// Wizard is the bubbletea model for the authoring walkthrough.
type Wizard struct {
	cfg     *config.Config
	session *workflow.Session
	logger  *slog.Logger

	refine RefineFunc
	stash  StashFunc
	upload UploadFunc

	stageIdx int
	width    int
	height   int

	destInputs [storeFieldCount]textinput.Model
	destFocus  int
	nameInput  textinput.Model
	pathInput  textinput.Model
	importing  bool

	curating      bool
	curationToken int

	statusMsg string
	errMsg    string
}

// New creates the wizard model for a session. The default actions run
// against the configured warehouse connection.
func New(cfg *config.Config, session *workflow.Session, logger *slog.Logger, opts ...Option) *Wizard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Wizard{
		cfg:     cfg,
		session: session,
		logger:  logger,
		refine:  defaultRefiner(cfg),
		stash:   defaultStasher(cfg),
		upload:  defaultUploader(cfg),
	}

	labels := [storeFieldCount]string{"Database", "Schema", "Stage"}
	defaults := [storeFieldCount]string{cfg.Destination.Database, cfg.Destination.Schema, cfg.Destination.Stage}
	if dest := session.Destination(); dest != nil {
		defaults = [storeFieldCount]string{dest.Database, dest.Schema, dest.Stage}
	}
	for i := range w.destInputs {
		in := textinput.New()
		in.Placeholder = labels[i]
		in.SetValue(defaults[i])
		in.CharLimit = 255
		w.destInputs[i] = in
	}
	w.destInputs[0].Focus()

	w.nameInput = textinput.New()
	w.nameInput.Placeholder = "Model name"
	if draft := session.Draft(); draft != nil {
		w.nameInput.SetValue(draft.Name)
	}

	w.pathInput = textinput.New()
	w.pathInput.Placeholder = "path/to/model.yaml"

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Init is called once when the program starts.
func (w *Wizard) Init() tea.Cmd {
	return textinput.Blink
}

// stage returns the currently selected stage.
func (w *Wizard) stage() workflow.Stage {
	return workflow.Stages[w.stageIdx]
}

// unlocked reports whether the stage at idx can be entered.
func (w *Wizard) unlocked(idx int) bool {
	if idx == 0 {
		return true
	}
	if idx >= len(workflow.Stages) {
		return false
	}
	return w.session.NextUnlocked(workflow.Stages[idx-1].ID)
}

// Update reacts to messages.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil

	case curationDoneMsg:
		w.curating = false
		if !msg.result.Succeeded() {
			w.session.EndCuration(msg.token)
			w.errMsg = msg.result.Err
			return w, nil
		}
		revised, err := model.FromYAML(msg.result.Revised)
		if err != nil {
			w.session.EndCuration(msg.token)
			w.errMsg = fmt.Sprintf("revised draft is not valid: %v", err)
			return w, nil
		}
		if err := w.session.ApplyCuration(msg.token, revised); err != nil {
			// A stale token means the attempt was superseded; the
			// result is discarded silently.
			w.logger.Debug("curation result discarded", "err", err)
			return w, nil
		}
		w.statusMsg = "Draft refined; validation reset"
		w.errMsg = ""
		return w, nil

	case stashDoneMsg:
		if msg.err != nil {
			w.errMsg = msg.err.Error()
			return w, nil
		}
		if err := w.session.MarkValidated(); err != nil {
			w.errMsg = err.Error()
			return w, nil
		}
		w.statusMsg = "Draft validated"
		w.errMsg = ""
		return w, nil

	case uploadDoneMsg:
		if msg.err != nil {
			w.errMsg = msg.err.Error()
			return w, nil
		}
		w.statusMsg = "Uploaded " + msg.fileName
		w.errMsg = ""
		return w, nil

	case tea.KeyMsg:
		return w.handleKey(msg)
	}

	return w, w.updateInputs(msg)
}

func (w *Wizard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return w, tea.Quit
	case "q":
		if !w.editingText() {
			return w, tea.Quit
		}
	case "left", "shift+tab":
		if !w.editingText() {
			w.moveStage(-1)
			return w, nil
		}
	case "right":
		if !w.editingText() {
			w.moveStage(1)
			return w, nil
		}
	case "tab":
		if w.stage().ID == workflow.StageStore {
			w.cycleDestFocus()
			return w, nil
		}
		if !w.editingText() {
			w.moveStage(1)
			return w, nil
		}
	case "enter":
		return w, w.submit()
	case "i":
		if w.stage().ID == workflow.StageCreate && !w.editingText() {
			w.importing = true
			w.pathInput.Focus()
			return w, nil
		}
	case "esc":
		if w.importing {
			w.importing = false
			w.pathInput.Blur()
			return w, nil
		}
	case "c":
		if w.stage().ID == workflow.StageEdit && !w.editingText() {
			return w, w.startCuration()
		}
	}

	return w, w.updateInputs(msg)
}

// editingText reports whether a text input currently has focus.
func (w *Wizard) editingText() bool {
	switch w.stage().ID {
	case workflow.StageStore:
		return true
	case workflow.StageCreate:
		return true
	}
	return false
}

func (w *Wizard) moveStage(delta int) {
	idx := w.stageIdx + delta
	if idx < 0 || idx >= len(workflow.Stages) {
		return
	}
	if !w.unlocked(idx) {
		w.errMsg = fmt.Sprintf("%s is locked", workflow.Stages[idx].Title)
		return
	}
	w.stageIdx = idx
	w.statusMsg = ""
	w.errMsg = ""
}

func (w *Wizard) cycleDestFocus() {
	w.destInputs[w.destFocus].Blur()
	w.destFocus = (w.destFocus + 1) % storeFieldCount
	w.destInputs[w.destFocus].Focus()
}

func (w *Wizard) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	switch w.stage().ID {
	case workflow.StageStore:
		for i := range w.destInputs {
			var cmd tea.Cmd
			w.destInputs[i], cmd = w.destInputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	case workflow.StageCreate:
		var cmd tea.Cmd
		if w.importing {
			w.pathInput, cmd = w.pathInput.Update(msg)
		} else {
			w.nameInput, cmd = w.nameInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// submit performs the current stage's primary action.
func (w *Wizard) submit() tea.Cmd {
	switch w.stage().ID {
	case workflow.StageGettingStarted:
		w.session.MarkSettingsChecked(true)
		w.moveStage(1)
	case workflow.StageStore:
		w.submitDestination()
	case workflow.StageCreate:
		if w.importing {
			w.submitImport()
		} else {
			w.submitNewDraft()
		}
	case workflow.StageEdit:
		w.moveStage(1)
	case workflow.StageValidate:
		return w.startValidation()
	case workflow.StageUpload:
		return w.startUpload()
	}
	return nil
}

func (w *Wizard) submitDestination() {
	dest := workflow.Destination{
		Database: strings.TrimSpace(w.destInputs[fieldDatabase].Value()),
		Schema:   strings.TrimSpace(w.destInputs[fieldSchema].Value()),
		Stage:    strings.TrimSpace(w.destInputs[fieldStage].Value()),
	}
	if err := w.session.SetDestination(dest.Database, dest.Schema, dest.Stage); err != nil {
		w.errMsg = err.Error()
		return
	}
	w.statusMsg = "Destination set to " + dest.String()
	w.errMsg = ""
	w.moveStage(1)
}

func (w *Wizard) submitNewDraft() {
	name := strings.TrimSpace(w.nameInput.Value())
	if name == "" {
		w.errMsg = "model name must not be empty"
		return
	}
	w.session.SetDraft(&model.Draft{Name: name})
	w.statusMsg = fmt.Sprintf("Draft %q created", name)
	w.errMsg = ""
	w.moveStage(1)
}

func (w *Wizard) submitImport() {
	path := strings.TrimSpace(w.pathInput.Value())
	draft, err := loadDraftFile(path)
	if err != nil {
		w.errMsg = err.Error()
		return
	}
	w.session.SetDraft(draft)
	w.importing = false
	w.pathInput.Blur()
	w.statusMsg = fmt.Sprintf("Imported draft %q", draft.Name)
	w.errMsg = ""
	w.moveStage(1)
}

// startCuration launches one refinement attempt. A second attempt
// while one is in flight is rejected; restarting supersedes first.
func (w *Wizard) startCuration() tea.Cmd {
	draft := w.session.Draft()
	if draft == nil || !draft.Exists() {
		w.errMsg = "no draft to refine"
		return nil
	}
	draftText, err := model.ToYAML(draft)
	if err != nil {
		w.errMsg = err.Error()
		return nil
	}

	if w.curating {
		w.session.CancelCuration()
	}
	token, err := w.session.BeginCuration()
	if err != nil {
		w.errMsg = err.Error()
		return nil
	}
	w.curating = true
	w.curationToken = token
	w.statusMsg = ""
	w.errMsg = ""

	refine := w.refine
	return func() tea.Msg {
		result := refine(context.Background(), draftText, nil)
		return curationDoneMsg{token: token, result: result}
	}
}

func (w *Wizard) startValidation() tea.Cmd {
	draft := w.session.Draft()
	if draft == nil || !draft.Exists() {
		w.errMsg = "no draft to validate"
		return nil
	}
	dest := w.session.Destination()
	if dest == nil || !dest.Complete() {
		w.errMsg = "destination not configured"
		return nil
	}

	stash := w.stash
	d := draft.Clone()
	target := *dest
	return func() tea.Msg {
		return stashDoneMsg{err: stash(context.Background(), target, d)}
	}
}

func (w *Wizard) startUpload() tea.Cmd {
	if !w.session.UploadEnabled() {
		w.errMsg = "upload requires a validated draft and a complete destination"
		return nil
	}
	draft := w.session.Draft()
	dest := *w.session.Destination()
	fileName := draft.FileName()

	upload := w.upload
	return func() tea.Msg {
		return uploadDoneMsg{
			fileName: fileName,
			err:      upload(context.Background(), dest, draft, fileName),
		}
	}
}
