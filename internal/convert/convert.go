// Package convert turns page text into a speaker-tagged dialogue script.
// The LLM-backed converter is the boundary to the content-to-dialogue
// collaborator; the rule-based Q&A converter keeps the pipeline usable
// offline and in tests.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jai1122/ConvoCast/internal/content"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/charmbracelet/log"
)

// Converter produces an ordered dialogue script from document text.
type Converter interface {
	Convert(ctx context.Context, title, text string, mode script.Mode) ([]script.DialogueLine, error)
}

// LLMConfig configures the chat-completions converter.
type LLMConfig struct {
	Endpoint string        `env:"CONVOCAST_LLM_ENDPOINT" envDefault:"https://api.openai.com/v1/chat/completions"`
	APIKey   string        `env:"CONVOCAST_LLM_API_KEY"`
	Model    string        `env:"CONVOCAST_LLM_MODEL" envDefault:"gpt-4o-mini"`
	Timeout  time.Duration `env:"CONVOCAST_LLM_TIMEOUT" envDefault:"120s"`
}

// LLMConverter calls an OpenAI-compatible chat-completions endpoint and
// parses the reply transcript.
type LLMConverter struct {
	cfg  LLMConfig
	http *http.Client
	log  *log.Logger
}

// NewLLMConverter creates the converter. An API key is required.
func NewLLMConverter(cfg LLMConfig, logger *log.Logger) (*LLMConverter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	return &LLMConverter{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger.WithPrefix("convert"),
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Convert implements Converter.
func (c *LLMConverter) Convert(ctx context.Context, title, text string, mode script.Mode) ([]script.DialogueLine, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(mode)},
			{Role: "user", Content: fmt.Sprintf("Title: %s\n\n%s", title, text)},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM request: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("LLM response decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("LLM error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned status %d with no choices", resp.StatusCode)
	}

	lines := script.ParseScript(parsed.Choices[0].Message.Content)
	if len(lines) == 0 {
		return nil, fmt.Errorf("LLM reply contained no speaker-tagged lines")
	}
	c.log.Debug("converted", "lines", len(lines))
	return normalizeSpeakers(lines), nil
}

func systemPrompt(mode script.Mode) string {
	if mode == script.ModeQA {
		return "Rewrite the document as a question-and-answer session. " +
			"Format every line exactly as 'HOST: <question>' or 'EXPERT: <answer>'. " +
			"No other prose, markdown, or stage directions outside [PAUSE] and [LAUGH] markers."
	}
	return "Rewrite the document as a lively two-person podcast conversation between " +
		"HOST (curious, guides the discussion) and EXPERT (explains the material). " +
		"Format every line exactly as 'HOST: <text>' or 'EXPERT: <text>'. " +
		"No other prose, markdown, or stage directions outside [PAUSE] and [LAUGH] markers."
}

// normalizeSpeakers folds common LLM speaker spellings onto the fixed roles.
func normalizeSpeakers(lines []script.DialogueLine) []script.DialogueLine {
	for i, l := range lines {
		switch strings.ToLower(string(l.Speaker)) {
		case "host", "interviewer", "q", "question":
			lines[i].Speaker = script.SpeakerHost
		case "expert", "guest", "a", "answer":
			lines[i].Speaker = script.SpeakerExpert
		}
	}
	return lines
}

// QAConverter is a deterministic fallback that alternates host questions
// derived from section headings with expert answers from section bodies.
type QAConverter struct{}

// NewQAConverter creates the rule-based converter.
func NewQAConverter() *QAConverter { return &QAConverter{} }

// Convert implements Converter.
func (q *QAConverter) Convert(_ context.Context, title, text string, _ script.Mode) ([]script.DialogueLine, error) {
	sections := content.Sections(text)
	if len(sections) == 0 {
		return nil, fmt.Errorf("document has no extractable text")
	}

	lines := []script.DialogueLine{{
		Speaker: script.SpeakerHost,
		Text:    fmt.Sprintf("Welcome! Today we are talking about %s.", strings.TrimSpace(title)),
	}}
	for _, s := range sections {
		if s.Body == "" {
			continue
		}
		question := "Tell us more."
		if s.Heading != "" {
			question = fmt.Sprintf("Can you walk us through %s?", strings.TrimRight(s.Heading, ".?!"))
		}
		lines = append(lines,
			script.DialogueLine{Speaker: script.SpeakerHost, Text: question},
			script.DialogueLine{Speaker: script.SpeakerExpert, Text: s.Body},
		)
	}
	lines = append(lines, script.DialogueLine{
		Speaker: script.SpeakerHost,
		Text:    "That was really insightful. Thanks for listening!",
	})
	return lines, nil
}
