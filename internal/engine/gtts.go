package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// GTTS is the cloud engine backed by gtts-cli (Google Translate TTS). It
// requires network reachability; network errors surface as per-line
// synthesis failures so the chain advances rather than excluding the engine
// for the whole run. Requests are rate limited to avoid being blocked.
type GTTS struct {
	binary        string
	timeout       time.Duration
	maxChunkChars int
	limiter       *rate.Limiter
	log           *log.Logger
}

// NewGTTS creates the gtts-cli adapter.
func NewGTTS(cfg Config, logger *log.Logger) *GTTS {
	rpm := cfg.GTTSRequestsPerMin
	if rpm <= 0 {
		rpm = 50
	}
	maxChunk := cfg.GTTSMaxChunkChars
	if maxChunk <= 0 {
		maxChunk = 200
	}
	return &GTTS{
		binary:        cfg.GTTSBinary,
		timeout:       cfg.GTTSTimeout,
		maxChunkChars: maxChunk,
		limiter:       rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		log:           logger.WithPrefix("gtts"),
	}
}

// Kind implements Engine.
func (g *GTTS) Kind() Kind { return KindGTTS }

// Available implements Engine. The probe checks the binary only; network
// reachability is a transient condition checked per synthesis.
func (g *GTTS) Available() bool {
	return binaryOnPath(g.binary)
}

// Synthesize implements Engine. gtts-cli rejects long inputs, so text above
// the chunk threshold is split on sentence boundaries and the resulting MP3
// streams are concatenated in order before returning. MPEG audio frames are
// self-delimiting, so stream-level concatenation yields a playable file.
func (g *GTTS) Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error) {
	outPath := basePath + ".mp3"
	lang := profile.Param("lang", "en")

	var mp3 []byte
	for _, chunk := range splitChunks(text, g.maxChunkChars) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %v: %w", err, ErrTimeout)
		}

		args := []string{chunk, "-l", lang}
		if profile.Param("slow", "") == "true" {
			args = append(args, "--slow")
		}
		args = append(args, "-o", "-")

		data, err := g.synthesizeChunk(ctx, args)
		if err != nil {
			return nil, err
		}
		mp3 = append(mp3, data...)
	}

	if len(mp3) == 0 {
		return nil, fmt.Errorf("gtts produced no audio: %w", ErrSynthesisFailed)
	}
	if err := os.WriteFile(outPath, mp3, 0o644); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("write segment: %w", err)
	}

	return &Result{
		Path: outPath,
		// MP3 exposes no cheap duration; the assembler measures the real
		// value after normalization.
		Duration: audio.EstimateSpokenDuration(text),
		Engine:   KindGTTS,
	}, nil
}

func (g *GTTS) synthesizeChunk(ctx context.Context, args []string) ([]byte, error) {
	data, err := runCommand(ctx, g.timeout, "", g.binary, args...)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gtts-cli produced no output: %w", ErrSynthesisFailed)
	}
	return data, nil
}

var sentenceEnd = strings.NewReplacer(". ", ".\n", "! ", "!\n", "? ", "?\n")

// splitChunks breaks text into pieces no longer than max characters,
// preferring sentence boundaries and falling back to word boundaries for
// oversized sentences.
func splitChunks(text string, max int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, sentence := range strings.Split(sentenceEnd.Replace(text), "\n") {
		pieces := []string{sentence}
		if len(sentence) > max {
			pieces = splitWords(sentence, max)
		}
		for _, piece := range pieces {
			if cur.Len() > 0 && cur.Len()+1+len(piece) > max {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitWords(sentence string, max int) []string {
	var pieces []string
	var cur strings.Builder
	for _, word := range strings.Fields(sentence) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > max {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}
