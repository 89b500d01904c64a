package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/store"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// StoreOptions holds options for the store command.
type StoreOptions struct {
	Database string
	Schema   string
	Stage    string
	Check    bool
	Create   bool
	Clear    bool
}

// NewStoreCommand creates the store command, which configures the
// destination stage for the session.
func NewStoreCommand() *cobra.Command {
	opts := &StoreOptions{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Configure the destination stage",
		Long: `Set the destination for the finished model: a database, schema, and
stage the current role can write to. All three parts are required;
an incomplete destination is rejected and drops any stored one, so
the dependent stages re-lock until a complete triple is set.`,
		Example: `  # Use the default destination
  semcraft store

  # Point at an existing stage
  semcraft store --database ANALYTICS --schema SEMANTIC --stage MODELS --check`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStore(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "database", "", "Destination database")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Destination schema")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "Destination stage")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Verify the stage exists")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Create the stage if it does not exist")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Clear the configured destination")

	return cmd
}

func runStore(cmd *cobra.Command, opts *StoreOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg
	sess := cmdCtx.Session

	if opts.Clear {
		sess.ClearDestination()
		if err := cmdCtx.SaveSession(); err != nil {
			return err
		}
		r.Success("Destination cleared")
		return nil
	}

	dest := workflow.Destination{
		Database: firstNonEmpty(opts.Database, cfg.Destination.Database),
		Schema:   firstNonEmpty(opts.Schema, cfg.Destination.Schema),
		Stage:    firstNonEmpty(opts.Stage, cfg.Destination.Stage),
	}

	if err := sess.SetDestination(dest.Database, dest.Schema, dest.Stage); err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			// The rejected resubmission dropped the stored destination.
			if saveErr := cmdCtx.SaveSession(); saveErr != nil {
				return saveErr
			}
		}
		return err
	}

	if opts.Check || opts.Create {
		adapterConn, db, err := OpenConnection(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer adapterConn.Close()

		stage := store.NewStage(db, dest)
		if opts.Create {
			if err := stage.Ensure(cmd.Context()); err != nil {
				return err
			}
		} else {
			exists, err := stage.Exists(cmd.Context())
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("stage %s does not exist", dest)
			}
		}
	}

	if err := cmdCtx.SaveSession(); err != nil {
		return err
	}

	r.Success("Destination set to " + dest.String())
	return nil
}
