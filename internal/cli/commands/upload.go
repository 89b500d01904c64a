package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/store"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the validated model to the destination stage",
		Long: `Upload the validated draft to the configured destination stage.

Upload requires a draft, a complete destination, and a successful
validation. The artifact name is the model name lowercased with spaces
replaced by underscores, suffixed with .yaml.`,
		RunE: runUpload,
	}
	return cmd
}

func runUpload(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	sess := cmdCtx.Session

	if !sess.UploadEnabled() {
		snap := sess.Snapshot()
		switch {
		case !snap.DraftExists:
			return fmt.Errorf("nothing to upload: create or import a model first")
		case snap.Destination == nil || !snap.Destination.Complete():
			return fmt.Errorf("destination not configured: set database, schema, and stage first")
		default:
			return fmt.Errorf("draft not validated: run validate first")
		}
	}

	draft := sess.Draft()
	dest := sess.Destination()
	fileName := draft.FileName()

	adapterConn, db, err := OpenConnection(cmd.Context(), cmdCtx.Cfg)
	if err != nil {
		return err
	}
	defer adapterConn.Close()

	stage := store.NewStage(db, *dest)

	exists, err := stage.Exists(cmd.Context())
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("stage %s does not exist", dest)
	}

	if err := stage.UploadModel(cmd.Context(), draft, fileName); err != nil {
		return err
	}

	r.Success(fmt.Sprintf("Uploaded %s to %s", fileName, dest))
	return nil
}
