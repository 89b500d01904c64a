package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/cli/output"
	"github.com/leapstack-labs/semcraft/internal/curate"
	"github.com/leapstack-labs/semcraft/internal/docs"
	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// CurateOptions holds options for the curate command.
type CurateOptions struct {
	Model    string
	DocsURL  string
	Sections []string
	Metadata []string
	Template string
}

// CurateOutput is the JSON output for the curate command.
type CurateOutput struct {
	Succeeded bool   `json:"succeeded"`
	Revised   string `json:"revised,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCurateCommand creates the curate command, which runs one LLM
// refinement attempt over the current draft.
func NewCurateCommand() *cobra.Command {
	opts := &CurateOptions{}
	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Refine the current draft with LLM-backed curation",
		Long: `Run one refinement attempt over the current session draft.

The pipeline fetches the reference documentation, aggregates any
metadata files, composes the prompt, and sends it to the remote
completion function over the warehouse connection. On success the
revised draft replaces the session draft and validation is reset.`,
		Example: `  # Refine with defaults
  semcraft curate

  # Supply table metadata exported from the warehouse
  semcraft curate --metadata orders_columns.txt --model mistral-large`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCurate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "Completion model name")
	cmd.Flags().StringVar(&opts.DocsURL, "docs-url", "", "Documentation page URL")
	cmd.Flags().StringSliceVar(&opts.Sections, "section", nil, "Documentation section IDs to keep")
	cmd.Flags().StringSliceVar(&opts.Metadata, "metadata", nil, "Metadata file to include (repeatable)")
	cmd.Flags().StringVar(&opts.Template, "template", "", "Prompt template file")

	return cmd
}

func runCurate(cmd *cobra.Command, opts *CurateOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg
	sess := cmdCtx.Session

	draft := sess.Draft()
	if draft == nil || !draft.Exists() {
		return fmt.Errorf("no draft to refine: create or import a model first")
	}

	draftText, err := model.ToYAML(draft)
	if err != nil {
		return err
	}

	metadata, err := readMetadataFiles(opts.Metadata, cfg.Connection.Type)
	if err != nil {
		return err
	}

	template := ""
	if opts.Template != "" {
		raw, err := os.ReadFile(opts.Template)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		template = string(raw)
	}

	adapterConn, db, err := OpenConnection(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer adapterConn.Close()

	token, err := sess.BeginCuration()
	if err != nil {
		if errors.Is(err, workflow.ErrCurationInFlight) {
			return fmt.Errorf("a curation attempt is already running")
		}
		return err
	}
	defer sess.EndCuration(token)

	pipeline := curate.NewPipeline(
		docs.NewFetcher(),
		curate.NewCompletionClient(cfg.Connection.Namespace),
		db,
	)
	pipeline.OnState(func(s curate.State) {
		cmdCtx.Logger.Debug("curation state", "state", string(s))
		if s != curate.StateSucceeded && s != curate.StateFailed {
			r.Info(string(s) + "...")
		}
	})

	req := curate.Request{
		DocsURL:    firstNonEmpty(opts.DocsURL, cfg.Curation.DocsURL),
		SectionIDs: firstNonEmptySlice(opts.Sections, cfg.Curation.Sections),
		Draft:      draftText,
		Metadata:   metadata,
		Template:   template,
		Model:      firstNonEmpty(opts.Model, cfg.Curation.Model),
	}

	result := pipeline.Refine(cmd.Context(), req)

	jsonMode := r.EffectiveMode() == output.ModeJSON

	if !result.Succeeded() {
		if jsonMode {
			return r.JSON(CurateOutput{Error: result.Err})
		}
		r.Error(result.Err)
		return nil
	}

	revised, err := model.FromYAML(result.Revised)
	if err != nil {
		// The completion returned text that does not parse; surface it
		// without touching the session draft.
		if jsonMode {
			return r.JSON(CurateOutput{Error: fmt.Sprintf("revised draft is not valid: %v", err), Revised: result.Revised})
		}
		r.Error(fmt.Sprintf("revised draft is not valid: %v", err))
		r.Println(result.Revised)
		return nil
	}

	if err := sess.ApplyCuration(token, revised); err != nil {
		return err
	}
	if err := cmdCtx.SaveSession(); err != nil {
		return err
	}

	if jsonMode {
		return r.JSON(CurateOutput{Succeeded: true, Revised: result.Revised})
	}
	r.Success("Draft refined; validation reset")
	return nil
}

func readMetadataFiles(paths []string, platform string) ([]curate.MetadataFile, error) {
	var files []curate.MetadataFile
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}
		files = append(files, curate.MetadataFile{
			Filename: filepath.Base(path),
			Platform: platform,
			Contents: string(raw),
		})
	}
	return files, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptySlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
