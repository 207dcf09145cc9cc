// Package content turns fetched page bodies (markdown or Confluence storage
// HTML) into plain text for the dialogue converter.
package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section is one heading-scoped slice of a document.
type Section struct {
	Heading string
	Body    string
}

// ExtractMarkdown renders a markdown document to speakable plain text,
// skipping code blocks and raw HTML.
func ExtractMarkdown(src string) string {
	var b strings.Builder
	for _, s := range Sections(src) {
		if s.Heading != "" {
			b.WriteString(s.Heading)
			b.WriteString(". ")
		}
		if s.Body != "" {
			b.WriteString(s.Body)
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Sections walks the markdown AST and groups text under its nearest heading.
// Content before the first heading lands in a section with an empty heading.
func Sections(src string) []Section {
	source := []byte(src)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var sections []Section
	cur := Section{}
	var body strings.Builder

	flush := func() {
		cur.Body = strings.TrimSpace(body.String())
		if cur.Heading != "" || cur.Body != "" {
			sections = append(sections, cur)
		}
		body.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			cur = Section{Heading: nodeText(node, source)}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			if t := nodeText(node, source); t != "" {
				body.WriteString(t)
				body.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return sections
}

// nodeText collects the text content under a node, ignoring inline code and
// raw HTML spans.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

var (
	htmlBlockTag = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|tr|br)>|<br\s*/?>`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{2,}`)
)

// ExtractHTML strips Confluence storage-format markup down to plain text.
// Block-level closers become line breaks so sentence structure survives.
func ExtractHTML(src string) string {
	out := htmlBlockTag.ReplaceAllString(src, "\n")
	out = htmlTag.ReplaceAllString(out, " ")
	out = html.UnescapeString(out)
	out = multiSpace.ReplaceAllString(out, " ")
	out = multiNewline.ReplaceAllString(out, "\n")

	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
