package curate

import (
	"fmt"
	"regexp"
	"strings"
)

// Prompt template slot names.
const (
	SlotDocs     = "docs"
	SlotDraft    = "initial_semantic_file"
	SlotMetadata = "metadata_files"
)

// DefaultPromptTemplate frames the revision task for the completion
// model.
const DefaultPromptTemplate = `You are a data analyst tasked with revising a semantic file for your enterprise.
You will receive an initial shell of a semantic file for a natural-language query assistant and must update the semantic file using additional metadata files.
The generated semantic file MUST adhere to the following documentation:
<docs>
{docs}
</docs>
Follow the rules below.
<rules>
1. Generated descriptions should be concise.
2. Each tablename should correspond to a single logical table in the semantic file. Do not create multiple logical tables for a single tablename.
3. Do not make assumptions about filters. Table samples are not exhaustive of values.
</rules>
<initial_semantic_shell>
{initial_semantic_file}
</initial_semantic_shell>
<other_metadata_files>
{metadata_files}
</other_metadata_files>
Revised Semantic File:
`

var reSlot = regexp.MustCompile(`\{([a-z_]+)\}`)

// TemplateError reports a template demanding a slot the composer does
// not supply.
type TemplateError struct {
	Slot string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("prompt template references unknown slot %q", e.Slot)
}

// ComposePrompt substitutes the draft, documentation and metadata block
// into the template's named slots, then escapes single quotes.
//
// The escaping MUST happen after substitution: the composed text is
// later embedded inside a single-quoted literal in the completion
// statement, and escaping the template first would let injected content
// containing a quote slip through unescaped.
func ComposePrompt(template, draft, docs, metadataBlock string) (string, error) {
	values := map[string]string{
		SlotDocs:     docs,
		SlotDraft:    draft,
		SlotMetadata: metadataBlock,
	}

	for _, m := range reSlot.FindAllStringSubmatch(template, -1) {
		if _, ok := values[m[1]]; !ok {
			return "", &TemplateError{Slot: m[1]}
		}
	}

	// Single pass over the template only, so slot-shaped text inside the
	// substituted values is never expanded.
	out := reSlot.ReplaceAllStringFunc(template, func(m string) string {
		return values[strings.Trim(m, "{}")]
	})
	return EscapeQuotes(out), nil
}

// EscapeQuotes prefixes every single quote with a backslash so the text
// can live inside a single-quoted SQL literal. Only single quotes are
// handled; other injection vectors into the templated statement are a
// known gap inherited from the completion call's contract.
func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
