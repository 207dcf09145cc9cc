package convert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/charmbracelet/log"
)

func TestQAConverter(t *testing.T) {
	doc := `# Sharding

Split data across nodes.

# Replication

Copy data for durability.
`
	lines, err := NewQAConverter().Convert(context.Background(), "Distributed Storage", doc, script.ModeQA)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	// Intro + two Q/A pairs + outro.
	if len(lines) != 6 {
		t.Fatalf("got %d lines: %+v", len(lines), lines)
	}
	if lines[0].Speaker != script.SpeakerHost || !strings.Contains(lines[0].Text, "Distributed Storage") {
		t.Errorf("intro = %+v", lines[0])
	}
	if !strings.Contains(lines[1].Text, "Sharding") {
		t.Errorf("question 1 = %q", lines[1].Text)
	}
	if lines[2].Speaker != script.SpeakerExpert || !strings.Contains(lines[2].Text, "Split data") {
		t.Errorf("answer 1 = %+v", lines[2])
	}

	if !strings.Contains(lines[3].Text, "Replication") {
		t.Errorf("question 2 = %q", lines[3].Text)
	}
	if lines[4].Speaker != script.SpeakerExpert || !strings.Contains(lines[4].Text, "Copy data") {
		t.Errorf("answer 2 = %+v", lines[4])
	}
	if lines[5].Speaker != script.SpeakerHost {
		t.Errorf("outro speaker = %s", lines[5].Speaker)
	}
}

func TestQAConverterEmptyDocument(t *testing.T) {
	if _, err := NewQAConverter().Convert(context.Background(), "t", "", script.ModeQA); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestLLMConverterRequiresKey(t *testing.T) {
	if _, err := NewLLMConverter(LLMConfig{}, log.New(io.Discard)); err == nil {
		t.Error("expected error without API key")
	}
}

func TestLLMConverter(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}

		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"HOST: Welcome!\nGUEST: Glad to be here.\n"}}]}`)
	}))
	defer srv.Close()

	c, err := NewLLMConverter(LLMConfig{Endpoint: srv.URL, APIKey: "test-key", Model: "test"}, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewLLMConverter: %v", err)
	}

	lines, err := c.Convert(context.Background(), "Title", "body text", script.ModeDialogue)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].Speaker != script.SpeakerHost {
		t.Errorf("line 0 speaker = %s", lines[0].Speaker)
	}
	// "GUEST" is folded onto the expert role.
	if lines[1].Speaker != script.SpeakerExpert {
		t.Errorf("line 1 speaker = %s, want expert", lines[1].Speaker)
	}
}

func TestLLMConverterErrorReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c, err := NewLLMConverter(LLMConfig{Endpoint: srv.URL, APIKey: "k"}, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Convert(context.Background(), "t", "x", script.ModeDialogue); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v, want rate limited", err)
	}
}
