package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/cli/output"
	"github.com/leapstack-labs/semcraft/internal/config"
)

// EnvOutput is the JSON output for the env command.
type EnvOutput struct {
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
}

// NewEnvCommand creates the env command, which checks that every
// required connection setting is present before the wizard starts.
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Check required connection settings",
		Long: `Verify that all connection settings the wizard needs are present.

Every missing setting is reported at once so they can be fixed in a
single pass. Settings come from semcraft.yaml, SEMCRAFT_* environment
variables, or flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			r := cmdCtx.Renderer

			err := cmdCtx.Cfg.CheckConnection()

			if r.EffectiveMode() == output.ModeJSON {
				out := EnvOutput{Ready: err == nil}
				var cfgErr *config.ConfigError
				if errors.As(err, &cfgErr) {
					out.Missing = cfgErr.Missing
				}
				if jsonErr := r.JSON(out); jsonErr != nil {
					return jsonErr
				}
				return err
			}

			if err != nil {
				var cfgErr *config.ConfigError
				if errors.As(err, &cfgErr) {
					r.Error("Missing required connection settings:")
					for _, name := range cfgErr.Missing {
						r.Println("  - " + name)
					}
				}
				return err
			}

			r.Success("All required connection settings are present")
			return nil
		},
	}
}
