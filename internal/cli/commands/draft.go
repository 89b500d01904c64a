package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/model"
)

// NewDraftCommand creates the draft command group.
func NewDraftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Create, import, or inspect the model draft",
	}

	cmd.AddCommand(newDraftNewCommand())
	cmd.AddCommand(newDraftImportCommand())
	cmd.AddCommand(newDraftShowCommand())

	return cmd
}

func newDraftNewCommand() *cobra.Command {
	var tables []string
	cmd := &cobra.Command{
		Use:     "new <name>",
		Short:   "Start a fresh draft",
		Args:    cobra.ExactArgs(1),
		Example: `  semcraft draft new "Order Events" --table ANALYTICS.RAW.ORDERS`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("draft name must not be empty")
			}

			draft := &model.Draft{Name: name}
			for _, ref := range tables {
				table, err := parseTableRef(ref)
				if err != nil {
					return err
				}
				draft.Tables = append(draft.Tables, model.Table{
					Name:      strings.ToLower(table.Table),
					BaseTable: table,
				})
			}

			cmdCtx.Session.SetDraft(draft)
			if err := cmdCtx.SaveSession(); err != nil {
				return err
			}

			cmdCtx.Renderer.Success(fmt.Sprintf("Draft %q created with %d tables", name, len(draft.Tables)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tables, "table", nil, "Base table as database.schema.table (repeatable)")
	return cmd
}

func newDraftImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an existing model YAML as the draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read model file: %w", err)
			}
			draft, err := model.FromYAML(string(raw))
			if err != nil {
				return err
			}
			if !draft.Exists() {
				return fmt.Errorf("imported model has no name")
			}

			cmdCtx.Session.SetDraft(draft)
			if err := cmdCtx.SaveSession(); err != nil {
				return err
			}

			cmdCtx.Renderer.Success(fmt.Sprintf("Imported draft %q", draft.Name))
			return nil
		},
	}
}

func newDraftShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current draft as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			draft := cmdCtx.Session.Draft()
			if draft == nil || !draft.Exists() {
				return fmt.Errorf("no draft in the current session")
			}

			text, err := model.ToYAML(draft)
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Println(text)
			return nil
		},
	}
}

func parseTableRef(ref string) (model.TableRef, error) {
	parts := strings.Split(ref, ".")
	if len(parts) != 3 {
		return model.TableRef{}, fmt.Errorf("invalid table reference %q: want database.schema.table", ref)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return model.TableRef{}, fmt.Errorf("invalid table reference %q: want database.schema.table", ref)
		}
	}
	return model.TableRef{Database: parts[0], Schema: parts[1], Table: parts[2]}, nil
}
