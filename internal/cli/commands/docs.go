package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semcraft/internal/cli/output"
	"github.com/leapstack-labs/semcraft/internal/docs"
)

// DocsOptions holds options for the docs command.
type DocsOptions struct {
	URL      string
	Sections []string
	Markdown bool
	List     bool
}

// NewDocsCommand creates the docs command, which previews the
// reference documentation fed into curation prompts.
func NewDocsCommand() *cobra.Command {
	opts := &DocsOptions{}
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Fetch the modeling reference documentation",
		Long: `Fetch the reference documentation used to ground curation prompts.

Only the allow-listed sections are kept; everything else on the page
is discarded. Use --section to preview a subset.`,
		Example: `  # Fetch the default sections
  semcraft docs

  # Fetch one section as markdown
  semcraft docs --section specification --markdown`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			r := cmdCtx.Renderer

			url := opts.URL
			if url == "" {
				url = cmdCtx.Cfg.Curation.DocsURL
			}
			if url == "" {
				url = docs.DefaultURL
			}
			sections := opts.Sections
			if len(sections) == 0 {
				sections = cmdCtx.Cfg.Curation.Sections
			}
			if len(sections) == 0 {
				sections = docs.DefaultSections
			}

			if opts.List {
				for _, id := range sections {
					r.Println(output.FormatKeyValue(id, docs.SectionTitle(id)))
				}
				return nil
			}

			cmdCtx.Logger.Debug("fetching documentation", "url", url, "sections", sections)

			fetcher := docs.NewFetcher()
			var text string
			var err error
			if opts.Markdown {
				text, err = fetcher.FetchMarkdown(cmd.Context(), url, sections)
			} else {
				text, err = fetcher.FetchFiltered(cmd.Context(), url, sections)
			}
			if err != nil {
				return err
			}

			r.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "Documentation page URL")
	cmd.Flags().StringSliceVar(&opts.Sections, "section", nil, "Section IDs to keep (repeatable)")
	cmd.Flags().BoolVar(&opts.Markdown, "markdown", false, "Convert the filtered sections to markdown")
	cmd.Flags().BoolVar(&opts.List, "list", false, "List the configured section IDs without fetching")

	return cmd
}
