// Package docs retrieves the external semantic-model specification page
// and filters it down to the sections worth feeding into a curation
// prompt.
//
// The page is semantic HTML with all content inside one <article> tag,
// split into <section> elements whose ids match the sidebar navigation.
package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultURL is the published semantic-model specification page.
const DefaultURL = "https://docs.snowflake.com/LIMITEDACCESS/snowflake-cortex/semantic-model-spec"

// DefaultSections is the allow-list of section ids consumed for prompt
// context. Everything else on the page is navigation or reference noise.
var DefaultSections = []string{
	"key-concepts",
	"tips-for-creating-a-semantic-model",
	"specification",
	"example-yaml",
}

var reBlankRuns = regexp.MustCompile(`\n{2,}`)

var titleCaser = cases.Title(language.English)

// SectionTitle renders a section id as a human-readable heading, for
// listings where the raw slug reads poorly.
func SectionTitle(id string) string {
	return titleCaser.String(strings.ReplaceAll(id, "-", " "))
}

// FetchError reports a documentation retrieval or parsing failure. It is
// fatal to the curation attempt that needed the docs, not to the
// process; no retry is performed here.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch docs from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves and filters specification documentation.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a bounded request timeout; the
// remote call has no retry or backoff of its own.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// NewFetcherWithClient creates a Fetcher using the given HTTP client.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchFiltered retrieves the page, keeps only the sections whose id is
// in sectionIDs (preserving document order), strips copy-button
// decoration, and returns the concatenated plain text with blank-line
// runs collapsed.
func (f *Fetcher) FetchFiltered(ctx context.Context, pageURL string, sectionIDs []string) (string, error) {
	sections, err := f.fetchSections(ctx, pageURL, sectionIDs)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, n := range sections {
		sb.WriteString(textContent(n))
		sb.WriteString("\n")
	}
	return reBlankRuns.ReplaceAllString(sb.String(), "\n"), nil
}

// FetchMarkdown is like FetchFiltered but renders the kept sections to
// markdown, for human consumption via the docs command.
func (f *Fetcher) FetchMarkdown(ctx context.Context, pageURL string, sectionIDs []string) (string, error) {
	sections, err := f.fetchSections(ctx, pageURL, sectionIDs)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, n := range sections {
		md, err := htmltomarkdown.ConvertString(renderNode(n))
		if err != nil {
			return "", &FetchError{URL: pageURL, Err: fmt.Errorf("convert section %q: %w", getAttr(n, "id"), err)}
		}
		parts = append(parts, strings.TrimSpace(md))
	}
	return strings.Join(parts, "\n\n"), nil
}

func (f *Fetcher) fetchSections(ctx context.Context, pageURL string, sectionIDs []string) ([]*html.Node, error) {
	body, err := f.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	article := findElement(doc, "article")
	if article == nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("no <article> element found")}
	}

	wanted := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		wanted[id] = true
	}

	var kept []*html.Node
	walk(article, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "section" && wanted[getAttr(n, "id")] {
			stripCopyButtons(n)
			kept = append(kept, n)
		}
	})
	return kept, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SemcraftDocsFetcher/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// walk visits every node in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// stripCopyButtons removes copy-button UI decoration from a section
// before its text is extracted.
func stripCopyButtons(n *html.Node) {
	var doomed []*html.Node
	walk(n, func(c *html.Node) {
		if c.Type == html.ElementNode && hasClass(c, "copybutton") {
			doomed = append(doomed, c)
		}
	})
	for _, c := range doomed {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(getAttr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// getAttr returns the value of an attribute, or empty string if not found.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns the text content of a node and its children.
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

// renderNode renders an HTML node back to string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}
