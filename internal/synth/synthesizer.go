// Package synth drives the engine fallback chain across a whole dialogue
// script, producing the ordered segment list.
package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/Jai1122/ConvoCast/internal/cache"
	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/Jai1122/ConvoCast/internal/voice"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Policy decides what happens when every engine fails for a line.
type Policy string

const (
	// PolicyAbort fails the whole run on the first unrecoverable line.
	PolicyAbort Policy = "abort"
	// PolicyPlaceholder substitutes a silent segment and continues.
	PolicyPlaceholder Policy = "placeholder"
)

// ParsePolicy validates a policy name from flags or config.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAbort, PolicyPlaceholder:
		return Policy(s), nil
	case "":
		return PolicyPlaceholder, nil
	}
	return "", fmt.Errorf("invalid failure policy %q (valid: abort, placeholder)", s)
}

// Segment is one synthesized audio unit for a single dialogue line.
type Segment struct {
	Index       int
	Speaker     script.SpeakerID
	Path        string
	Duration    time.Duration
	Engine      engine.Kind
	Placeholder bool
	Cached      bool
	// Attempts holds the engines that failed or were skipped before this
	// segment's engine succeeded.
	Attempts []engine.Attempt
	// Pause is extra silence after this segment, from the line's pause cues.
	Pause time.Duration
}

// LineFailure records an unrecoverable per-line failure kept for metadata.
type LineFailure struct {
	Index   int
	Speaker script.SpeakerID
	Err     error
}

// Config holds per-run synthesis settings.
type Config struct {
	// Engine is the caller-requested kind; empty means each profile's own.
	Engine engine.Kind
	Mode   script.Mode
	Policy Policy
	// Workers bounds parallel synthesize calls. 1 keeps the pipeline
	// strictly sequential.
	Workers int
	// PlaceholderDur is the silent segment length under PolicyPlaceholder.
	PlaceholderDur time.Duration
	SampleRate     int
	WorkDir        string
}

// Synthesizer resolves voices and walks the fallback chain per line.
type Synthesizer struct {
	cfg    Config
	norm   *script.Normalizer
	voices *voice.Registry
	chain  *engine.Chain
	cache  *cache.Cache // optional
	log    *log.Logger
}

// New creates a synthesizer. cache may be nil to disable segment caching.
func New(cfg Config, voices *voice.Registry, chain *engine.Chain, segCache *cache.Cache, logger *log.Logger) *Synthesizer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PlaceholderDur <= 0 {
		cfg.PlaceholderDur = time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	return &Synthesizer{
		cfg:    cfg,
		norm:   script.NewNormalizer(logger),
		voices: voices,
		chain:  chain,
		cache:  segCache,
		log:    logger.WithPrefix("synth"),
	}
}

// Run synthesizes every line in order. The returned segment slice always has
// one entry per line, in line order, regardless of fallback retries or
// worker completion order. Failures carries the lines that degraded to
// placeholders; under PolicyAbort the first such line fails the run with its
// full per-engine attempt history.
func (s *Synthesizer) Run(ctx context.Context, lines []script.DialogueLine) ([]Segment, []LineFailure, error) {
	segments := make([]Segment, len(lines))

	var mu sync.Mutex
	var failures []LineFailure

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, line := range lines {
		g.Go(func() error {
			// Run-level cancellation is checked at minimum between lines.
			if err := ctx.Err(); err != nil {
				return err
			}

			seg, err := s.synthesizeLine(ctx, i, line)
			if err == nil {
				segments[i] = *seg
				return nil
			}

			var chainErr *engine.ChainError
			if !errors.As(err, &chainErr) {
				// Configuration errors (unknown profile) abort regardless
				// of policy.
				return fmt.Errorf("line %d (%s): %w", i, line.Speaker, err)
			}

			if s.cfg.Policy == PolicyAbort {
				return fmt.Errorf("line %d (%s): %w", i, line.Speaker, chainErr)
			}

			placeholder, perr := s.placeholder(i, line)
			if perr != nil {
				return fmt.Errorf("line %d placeholder: %w", i, perr)
			}
			segments[i] = *placeholder

			mu.Lock()
			failures = append(failures, LineFailure{Index: i, Speaker: line.Speaker, Err: chainErr})
			mu.Unlock()
			s.log.Warn("line degraded to placeholder", "line", i, "speaker", line.Speaker, "err", chainErr)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })
	return segments, failures, nil
}

func (s *Synthesizer) synthesizeLine(ctx context.Context, index int, line script.DialogueLine) (*Segment, error) {
	text, cues := s.norm.Normalize(line.Text)
	pause := trailingPause(append(line.Cues, cues...))

	if text == "" {
		// Nothing speakable; keep the slot with minimal silence so segment
		// count and ordering stay exact.
		s.log.Debug("line empty after normalization", "line", index)
		return s.silentSegment(index, line, s.cfg.PlaceholderDur, false, pause)
	}

	profile, err := s.voices.ResolveForSpeaker(line.Speaker, s.cfg.Mode)
	if err != nil {
		return nil, err
	}

	basePath := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("segment_%03d", index))

	requested := s.cfg.Engine
	if requested == "" {
		requested = profile.Engine
	}

	key := cache.Key(requested, profile.ID, text)
	if s.cache != nil {
		if kind, data, ok := s.cache.Get(key); ok {
			path := basePath + cachedExt(data)
			if err := os.WriteFile(path, data, 0o644); err == nil {
				s.log.Debug("cache hit", "line", index)
				return &Segment{
					Index:    index,
					Speaker:  line.Speaker,
					Path:     path,
					Duration: cachedDuration(data, text),
					Engine:   kind,
					Cached:   true,
					Pause:    pause,
				}, nil
			}
		}
	}

	result, err := s.chain.Synthesize(ctx, requested, text, profile, basePath)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, rerr := os.ReadFile(result.Path); rerr == nil {
			if cerr := s.cache.Put(key, result.Engine, data); cerr != nil {
				s.log.Debug("cache put failed", "err", cerr)
			}
		}
	}

	return &Segment{
		Index:    index,
		Speaker:  line.Speaker,
		Path:     result.Path,
		Duration: result.Duration,
		Engine:   result.Engine,
		Attempts: result.Attempts,
		Pause:    pause,
	}, nil
}

func (s *Synthesizer) placeholder(index int, line script.DialogueLine) (*Segment, error) {
	return s.silentSegment(index, line, s.cfg.PlaceholderDur, true, 0)
}

func (s *Synthesizer) silentSegment(index int, line script.DialogueLine, dur time.Duration, placeholder bool, pause time.Duration) (*Segment, error) {
	pcm := audio.Silence(dur, s.cfg.SampleRate)
	path := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("segment_%03d.wav", index))
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, s.cfg.SampleRate), 0o644); err != nil {
		return nil, err
	}
	return &Segment{
		Index:       index,
		Speaker:     line.Speaker,
		Path:        path,
		Duration:    dur,
		Placeholder: placeholder,
		Pause:       pause,
	}, nil
}

// trailingPause sums the pause cues of a line; the assembler inserts the
// extra silence after the line's segment.
func trailingPause(cues []script.Cue) time.Duration {
	var total time.Duration
	for _, c := range cues {
		if c.Kind == script.CuePause {
			total += c.Duration
		}
	}
	return total
}

// cachedExt sniffs the container of cached audio bytes.
func cachedExt(data []byte) string {
	if len(data) >= 4 && string(data[0:4]) == "RIFF" {
		return ".wav"
	}
	return ".mp3"
}

// cachedDuration measures cached audio where the container allows it,
// falling back to a speaking-rate estimate.
func cachedDuration(data []byte, text string) time.Duration {
	if pcm, rate, channels, err := audio.DecodeWAV(data); err == nil && channels == 1 {
		return audio.PCMDuration(len(pcm), rate)
	}
	return audio.EstimateSpokenDuration(text)
}

// EnginesUsed summarizes the distinct engines across segments, in fallback
// priority order, for episode metadata.
func EnginesUsed(segments []Segment) []engine.Kind {
	seen := make(map[engine.Kind]bool)
	for _, s := range segments {
		if s.Engine != "" {
			seen[s.Engine] = true
		}
	}
	var kinds []engine.Kind
	for _, k := range engine.FallbackOrder {
		if seen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ScriptText renders the normalized script for the episode artifact.
func (s *Synthesizer) ScriptText(lines []script.DialogueLine) string {
	var b strings.Builder
	for _, l := range lines {
		text, _ := s.norm.Normalize(l.Text)
		b.WriteString(strings.ToUpper(string(l.Speaker)))
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
