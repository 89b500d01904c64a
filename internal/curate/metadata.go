// Package curate implements the LLM-assisted refinement pipeline: it
// merges specification documentation, the current draft and uploaded
// metadata files into one prompt, sends it to a remote completion
// service, and surfaces the outcome as a value without ever touching
// the caller's draft.
package curate

import (
	"fmt"
	"strings"
)

// MetadataFile is one user-supplied auxiliary file: its name, the
// platform it came from, and its full textual contents.
type MetadataFile struct {
	Filename string
	Platform string
	Contents string
}

// FormatMetadata normalizes the uploaded files into one prompt block.
// Slice order is preserved end to end: it decides which metadata the
// model sees first. Contents are never truncated. An empty slice
// produces an empty string.
func FormatMetadata(files []MetadataFile) string {
	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "Filename: %s\n", f.Filename)
		fmt.Fprintf(&sb, "Platform: %s\n", f.Platform)
		fmt.Fprintf(&sb, "Contents: %s\n", f.Contents)
	}
	return sb.String()
}
