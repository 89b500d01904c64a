package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/store"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	File    string
	NoStash bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the current draft",
		Long: `Parse and validate the current session draft.

On success the session is marked validated and a temporary copy of the
model is stashed on the destination stage so downstream tooling can
exercise it before the final upload. Any later edit clears the
validated mark.`,
		Example: `  # Validate the session draft
  semcraft validate

  # Import a YAML file as the draft and validate it
  semcraft validate --file orders.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML file to import as the draft before validating")
	cmd.Flags().BoolVar(&opts.NoStash, "no-stash", false, "Skip uploading the temporary validation copy")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	sess := cmdCtx.Session

	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return fmt.Errorf("read model file: %w", err)
		}
		draft, err := model.FromYAML(string(raw))
		if err != nil {
			return err
		}
		sess.SetDraft(draft)
	}

	draft := sess.Draft()
	if draft == nil || !draft.Exists() {
		return fmt.Errorf("no draft to validate: create or import a model first")
	}

	// Round-trip the draft to catch anything that cannot serialize.
	text, err := model.ToYAML(draft)
	if err != nil {
		return err
	}
	if _, err := model.FromYAML(text); err != nil {
		return err
	}

	if !opts.NoStash {
		dest := sess.Destination()
		if dest == nil || !dest.Complete() {
			return fmt.Errorf("destination not configured: set database, schema, and stage first")
		}

		adapterConn, db, err := OpenConnection(cmd.Context(), cmdCtx.Cfg)
		if err != nil {
			return err
		}
		defer adapterConn.Close()

		stage := store.NewStage(db, *dest)
		if err := stage.StashValidated(cmd.Context(), draft); err != nil {
			return err
		}
		cmdCtx.Logger.Debug("stashed validation copy", "name", stage.TmpName())
	}

	if err := sess.MarkValidated(); err != nil {
		return err
	}
	if err := cmdCtx.SaveSession(); err != nil {
		return err
	}

	r.Success(fmt.Sprintf("Draft %q is valid", draft.Name))
	return nil
}
