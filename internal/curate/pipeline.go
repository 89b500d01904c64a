package curate

import (
	"context"

	"github.com/leapstack-labs/semcraft/internal/docs"
)

// State is one step of the refinement pipeline.
type State string

// Pipeline states. Succeeded and Failed are terminal.
const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateComposing  State = "composing"
	StateCompleting State = "completing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Request carries everything a refinement attempt needs. The draft is
// passed as its serialized text; the pipeline never sees, and never
// mutates, the session's draft.
type Request struct {
	DocsURL    string
	SectionIDs []string
	Draft      string
	Metadata   []MetadataFile
	Template   string
	Model      string
}

// Result is the tagged outcome of a refinement attempt: either revised
// text or an error message, never both. Errors travel as values so the
// hosting surface can render the failure without aborting the session.
type Result struct {
	Revised string
	Err     string
}

// Succeeded reports whether the attempt produced revised text.
func (r Result) Succeeded() bool { return r.Err == "" }

// DocsFetcher retrieves filtered specification documentation.
type DocsFetcher interface {
	FetchFiltered(ctx context.Context, url string, sectionIDs []string) (string, error)
}

// Completer sends a composed prompt to the remote completion service.
type Completer interface {
	Complete(ctx context.Context, conn Querier, model, prompt string) (string, error)
}

// Pipeline orchestrates fetch -> aggregate -> compose -> complete.
type Pipeline struct {
	fetcher   DocsFetcher
	completer Completer
	conn      Querier

	// onState, when set, observes every state transition. The TUI uses
	// it to display progress.
	onState func(State)
}

// NewPipeline assembles a pipeline over an existing connection.
func NewPipeline(fetcher DocsFetcher, completer Completer, conn Querier) *Pipeline {
	return &Pipeline{fetcher: fetcher, completer: completer, conn: conn}
}

// OnState registers a state observer.
func (p *Pipeline) OnState(fn func(State)) { p.onState = fn }

func (p *Pipeline) transition(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}

// Refine runs one refinement attempt. Any step's failure short-circuits
// to a failed result carrying the originating error message; no partial
// result is ever surfaced as success. The caller decides whether and
// how to apply the revised text.
func (p *Pipeline) Refine(ctx context.Context, req Request) Result {
	p.transition(StateIdle)

	docsURL := req.DocsURL
	if docsURL == "" {
		docsURL = docs.DefaultURL
	}
	sections := req.SectionIDs
	if len(sections) == 0 {
		sections = docs.DefaultSections
	}
	template := req.Template
	if template == "" {
		template = DefaultPromptTemplate
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	p.transition(StateFetching)
	docs, err := p.fetcher.FetchFiltered(ctx, docsURL, sections)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateComposing)
	prompt, err := ComposePrompt(template, req.Draft, docs, FormatMetadata(req.Metadata))
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateCompleting)
	revised, err := p.completer.Complete(ctx, p.conn, model, prompt)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateSucceeded)
	return Result{Revised: revised}
}

func (p *Pipeline) fail(err error) Result {
	p.transition(StateFailed)
	return Result{Err: "Error encountered: " + err.Error()}
}
