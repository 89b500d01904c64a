package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/cli/output"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// StageStatus is one row of the status report.
type StageStatus struct {
	Stage    string `json:"stage"`
	Title    string `json:"title"`
	Unlocked bool   `json:"unlocked"`
}

// StatusOutput is the JSON output for the status command.
type StatusOutput struct {
	Session       string        `json:"session"`
	Stages        []StageStatus `json:"stages"`
	Destination   string        `json:"destination,omitempty"`
	Draft         string        `json:"draft,omitempty"`
	Validated     bool          `json:"validated"`
	UploadEnabled bool          `json:"upload_enabled"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wizard progress for the current session",
		Long: `Show which workflow stages are unlocked for the current session,
the configured destination, and whether the draft has been validated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderStatus(cmdCtx)
		},
	}
}

func renderStatus(cmdCtx *CommandContext) error {
	r := cmdCtx.Renderer
	sess := cmdCtx.Session
	snap := sess.Snapshot()

	out := StatusOutput{
		Session:       sess.ID(),
		Validated:     snap.Validated,
		UploadEnabled: sess.UploadEnabled(),
	}
	if snap.Destination != nil {
		out.Destination = snap.Destination.String()
	}
	if draft := sess.Draft(); draft != nil {
		out.Draft = draft.Name
	}

	for i, stage := range workflow.Stages {
		unlocked := i == 0
		if i > 0 {
			unlocked = sess.NextUnlocked(workflow.Stages[i-1].ID)
		}
		out.Stages = append(out.Stages, StageStatus{
			Stage:    string(stage.ID),
			Title:    stage.Title,
			Unlocked: unlocked,
		})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return statusMarkdown(r, &out)
	default:
		return statusText(r, &out)
	}
}

func statusText(r *output.Renderer, out *StatusOutput) error {
	styles := r.Styles()

	r.Println(styles.Header1.Render("Session " + out.Session))
	r.Println("")

	rows := make([][]string, 0, len(out.Stages))
	for _, s := range out.Stages {
		state := "locked"
		if s.Unlocked {
			state = "unlocked"
		}
		rows = append(rows, []string{s.Title, state})
	}
	output.Table(r.Writer(), []string{"Stage", "State"}, rows)

	r.Println("")
	if out.Destination != "" {
		r.Printf("Destination: %s\n", out.Destination)
	}
	if out.Draft != "" {
		r.Printf("Draft: %s\n", out.Draft)
	}
	r.Printf("Validated: %t\n", out.Validated)
	r.Printf("Upload enabled: %t\n", out.UploadEnabled)
	return nil
}

func statusMarkdown(r *output.Renderer, out *StatusOutput) error {
	r.Println(output.FormatHeader(1, "Session "+out.Session))
	r.Println("")

	rows := make([][]string, 0, len(out.Stages))
	for _, s := range out.Stages {
		state := "locked"
		if s.Unlocked {
			state = "unlocked"
		}
		rows = append(rows, []string{s.Title, state})
	}
	output.RenderMarkdownTable(r.Writer(), []string{"Stage", "State"}, rows)

	r.Println("")
	if out.Destination != "" {
		r.Println(output.FormatKeyValue("Destination", out.Destination))
	}
	if out.Draft != "" {
		r.Println(output.FormatKeyValue("Draft", out.Draft))
	}
	if out.Validated {
		r.Println(output.FormatKeyValue("Validated", "yes"))
	} else {
		r.Println(output.FormatKeyValue("Validated", "no"))
	}
	return nil
}
