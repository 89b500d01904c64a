// Package output renders command results as styled text, markdown, or
// JSON depending on the configured mode and the terminal environment.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
)

// Mode selects the output format.
type Mode string

const (
	// ModeAuto picks text on a terminal and markdown when piped.
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes formatted command output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles Styles
	tty    *bool
}

// NewRenderer creates a renderer writing to the given streams.
// An empty or unknown mode falls back to ModeAuto.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	switch mode {
	case ModeText, ModeMarkdown, ModeJSON:
	default:
		mode = ModeAuto
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		styles: DefaultStyles(),
	}
}

// NewRendererWithTTY creates a renderer with an explicit terminal
// state, bypassing detection. Used by tests.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	r := NewRenderer(out, errOut, mode)
	r.tty = &isTTY
	return r
}

// Mode returns the configured mode.
func (r *Renderer) Mode() Mode { return r.mode }

// Writer returns the output stream, for table rendering.
func (r *Renderer) Writer() io.Writer { return r.out }

// EffectiveMode resolves ModeAuto against the environment: text when
// stdout is a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.tty != nil {
		if *r.tty {
			return ModeText
		}
		return ModeMarkdown
	}
	if f, ok := r.out.(*os.File); ok {
		if termenv.NewOutput(f).EnvNoColor() || !isTerminal(f) {
			return ModeMarkdown
		}
		return ModeText
	}
	return ModeMarkdown
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Styles returns the lipgloss styles for the active profile. When the
// effective mode is not styled text, all styles are no-ops.
func (r *Renderer) Styles() Styles {
	if r.EffectiveMode() != ModeText {
		return PlainStyles()
	}
	return r.styles
}

// Println writes a line to the output stream.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output stream.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// JSON writes the value as indented JSON to the output stream.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

// Success writes a success message to the output stream.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.out, r.Styles().Success.Render("✓ "+msg))
}

// Warning writes a warning message to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles().Warning.Render("! "+msg))
}

// Error writes an error message to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles().Error.Render("✗ "+msg))
}

// Info writes an informational message to the output stream.
func (r *Renderer) Info(msg string) {
	_, _ = fmt.Fprintln(r.out, r.Styles().Muted.Render(msg))
}
