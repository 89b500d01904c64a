package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/state"
	"github.com/leapstack-labs/semcraft/internal/ui"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port int
}

// NewServeCommand creates the serve command, which hosts the wizard as
// a local web application.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the authoring wizard as a local web app",
		Long: `Host the authoring workflow over HTTP. Each browser session gets its
own isolated wizard session; drafts and progress never leak between
them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			cfg := cmdCtx.Cfg

			store := state.NewSQLiteStore()
			if err := store.Open(cfg.StatePath); err != nil {
				return err
			}
			if err := store.Migrate(); err != nil {
				store.Close()
				return err
			}
			defer store.Close()

			port := opts.Port
			if port == 0 {
				port = cfg.Port
			}

			srv := ui.NewServer(cfg, store, cmdCtx.Logger)
			cmdCtx.Renderer.Info(fmt.Sprintf("Listening on http://localhost:%d", port))
			return srv.Run(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on")

	return cmd
}
