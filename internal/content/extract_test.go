package content

import (
	"strings"
	"testing"
)

const sampleMarkdown = `Intro paragraph before any heading.

# What Is Caching

Caching stores **hot** data close to the reader.

` + "```go\nfunc cached() {}\n```" + `

# Invalidation

The hard part.

- stale reads
- thundering herds
`

func TestSections(t *testing.T) {
	sections := Sections(sampleMarkdown)
	if len(sections) != 3 {
		t.Fatalf("got %d sections: %+v", len(sections), sections)
	}

	if sections[0].Heading != "" || !strings.Contains(sections[0].Body, "Intro paragraph") {
		t.Errorf("preamble section = %+v", sections[0])
	}
	if sections[1].Heading != "What Is Caching" {
		t.Errorf("heading = %q", sections[1].Heading)
	}
	if strings.Contains(sections[1].Body, "func cached") {
		t.Errorf("code block leaked into body: %q", sections[1].Body)
	}
	if !strings.Contains(sections[2].Body, "stale reads") {
		t.Errorf("list item missing from body: %q", sections[2].Body)
	}
}

func TestExtractMarkdown(t *testing.T) {
	got := ExtractMarkdown(sampleMarkdown)

	for _, want := range []string{"What Is Caching", "hot", "The hard part."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "```") || strings.Contains(got, "func cached") {
		t.Errorf("markup leaked: %q", got)
	}
	if strings.Contains(got, "**") {
		t.Errorf("bold markers leaked: %q", got)
	}
}

func TestExtractHTML(t *testing.T) {
	src := `<h1>Overview</h1><p>Queues decouple &amp; buffer producers.</p>` +
		`<ul><li>ordering</li><li>retries</li></ul><p>Done.<br/>Next line.</p>`

	got := ExtractHTML(src)

	for _, want := range []string{"Overview", "Queues decouple & buffer producers.", "ordering", "retries"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("tags leaked: %q", got)
	}
	if !strings.Contains(got, "Done.\nNext line.") {
		t.Errorf("block break lost: %q", got)
	}
}

func TestExtractHTMLEmpty(t *testing.T) {
	if got := ExtractHTML("<p>  </p>"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
