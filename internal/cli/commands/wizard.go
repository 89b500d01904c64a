package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/tui"
)

// NewWizardCommand creates the wizard command, the interactive
// terminal walkthrough of the authoring workflow.
func NewWizardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Start the interactive authoring wizard",
		Long: `Walk through the authoring workflow in the terminal: check the
environment, configure the destination stage, create or import a
draft, refine it with curation, validate, and upload.

Stages unlock in order; a stage stays locked until the one before it
is satisfied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Cfg.CheckConnection(); err != nil {
				return err
			}
			cmdCtx.Session.MarkSettingsChecked(true)

			m := tui.New(cmdCtx.Cfg, cmdCtx.Session, cmdCtx.Logger)
			p := tea.NewProgram(m, tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("wizard: %w", err)
			}

			return cmdCtx.SaveSession()
		},
	}
}
