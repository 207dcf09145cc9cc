package synth

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/Jai1122/ConvoCast/internal/cache"
	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/Jai1122/ConvoCast/internal/voice"
	"github.com/charmbracelet/log"
)

func testLines() []script.DialogueLine {
	return []script.DialogueLine{
		{Speaker: script.SpeakerHost, Text: "Welcome to the show. Today we talk about caching."},
		{Speaker: script.SpeakerExpert, Text: "Thanks for having me. Caching stores hot data close to the reader."},
		{Speaker: script.SpeakerHost, Text: "So what goes wrong in practice?"},
		{Speaker: script.SpeakerExpert, Text: "Invalidation, mostly. [PAUSE] And sizing."},
	}
}

func newTestSynthesizer(t *testing.T, cfg Config, segCache *cache.Cache, engines ...engine.Engine) *Synthesizer {
	t.Helper()
	logger := log.New(io.Discard)

	voices, err := voice.NewRegistry(nil, logger)
	if err != nil {
		t.Fatalf("voice registry: %v", err)
	}
	chain := engine.NewChain(engine.NewRegistry(logger, engines...), logger)

	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	return New(cfg, voices, chain, segCache, logger)
}

func TestRunOrderAndCount(t *testing.T) {
	for _, workers := range []int{1, 4} {
		piper := engine.NewMockKind(engine.KindPiper)
		s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue, Workers: workers}, nil, piper)

		lines := testLines()
		segments, failures, err := s.Run(context.Background(), lines)
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if len(failures) != 0 {
			t.Fatalf("workers=%d: unexpected failures: %v", workers, failures)
		}
		if len(segments) != len(lines) {
			t.Fatalf("workers=%d: got %d segments, want %d", workers, len(segments), len(lines))
		}
		for i, seg := range segments {
			if seg.Index != i {
				t.Errorf("workers=%d: segment %d has index %d", workers, i, seg.Index)
			}
			if seg.Speaker != lines[i].Speaker {
				t.Errorf("workers=%d: segment %d speaker = %s, want %s", workers, i, seg.Speaker, lines[i].Speaker)
			}
			if _, err := os.Stat(seg.Path); err != nil {
				t.Errorf("workers=%d: segment %d file missing: %v", workers, i, err)
			}
		}
	}
}

func TestPauseCueBecomesTrailingSilence(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, nil, piper)

	lines := []script.DialogueLine{
		{Speaker: script.SpeakerHost, Text: "Let me think. [PAUSE:800] Okay."},
	}
	segments, _, err := s.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if segments[0].Pause != 800*time.Millisecond {
		t.Errorf("pause = %v, want 800ms", segments[0].Pause)
	}
}

func TestPlaceholderPolicy(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	piper.SetFailure(engine.ErrSynthesisFailed)
	s := newTestSynthesizer(t, Config{
		Mode:           script.ModeDialogue,
		Policy:         PolicyPlaceholder,
		PlaceholderDur: 2 * time.Second,
	}, nil, piper)

	lines := testLines()[:2]
	segments, failures, err := s.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(segments) != len(lines) {
		t.Fatalf("got %d segments, want %d", len(segments), len(lines))
	}
	for i, seg := range segments {
		if !seg.Placeholder {
			t.Errorf("segment %d not marked placeholder", i)
		}
		if seg.Duration != 2*time.Second {
			t.Errorf("segment %d duration = %v, want 2s", i, seg.Duration)
		}
		if _, err := os.Stat(seg.Path); err != nil {
			t.Errorf("placeholder file missing: %v", err)
		}
	}

	if len(failures) != len(lines) {
		t.Fatalf("got %d failures, want %d", len(failures), len(lines))
	}
	for i, f := range failures {
		if f.Index != i {
			t.Errorf("failure %d index = %d", i, f.Index)
		}
		if !errors.Is(f.Err, engine.ErrAllEnginesFailed) {
			t.Errorf("failure err = %v, want ErrAllEnginesFailed", f.Err)
		}
	}
}

func TestAbortPolicy(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	piper.SetFailure(engine.ErrSynthesisFailed)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue, Policy: PolicyAbort}, nil, piper)

	_, _, err := s.Run(context.Background(), testLines()[:1])
	if err == nil {
		t.Fatal("expected abort")
	}
	if !errors.Is(err, engine.ErrAllEnginesFailed) {
		t.Errorf("err = %v, want ErrAllEnginesFailed", err)
	}
	var chainErr *engine.ChainError
	if !errors.As(err, &chainErr) {
		t.Errorf("abort error lost the attempt history: %v", err)
	}
}

func TestFallbackToSecondaryEngine(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	piper.SetAvailable(false)
	espeak := engine.NewMockKind(engine.KindESpeak)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, nil, piper, espeak)

	segments, failures, err := s.Run(context.Background(), testLines()[:2])
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	for i, seg := range segments {
		if seg.Engine != engine.KindESpeak {
			t.Errorf("segment %d engine = %s, want espeak", i, seg.Engine)
		}
		if len(seg.Attempts) != 1 || seg.Attempts[0].Kind != engine.KindPiper || !seg.Attempts[0].Skipped {
			t.Errorf("segment %d attempts = %v, want skipped piper", i, seg.Attempts)
		}
	}

	used := EnginesUsed(segments)
	if len(used) != 1 || used[0] != engine.KindESpeak {
		t.Errorf("EnginesUsed = %v, want [espeak]", used)
	}
}

func TestUnknownSpeakerAbortsRegardlessOfPolicy(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue, Policy: PolicyPlaceholder}, nil, piper)

	lines := []script.DialogueLine{{Speaker: "narrator", Text: "hello"}}
	_, _, err := s.Run(context.Background(), lines)
	if !errors.Is(err, engine.ErrUnknownProfile) {
		t.Errorf("err = %v, want ErrUnknownProfile", err)
	}
}

func TestEmptyLineKeepsSlot(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, nil, piper)

	lines := []script.DialogueLine{
		{Speaker: script.SpeakerHost, Text: "[UNRECOGNIZED_TOKEN]"},
		{Speaker: script.SpeakerExpert, Text: "real words"},
	}
	segments, failures, err := s.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Placeholder {
		t.Error("empty line marked as placeholder failure")
	}
	if segments[0].Duration <= 0 {
		t.Error("empty line segment has no duration")
	}
	if piper.Calls() != 1 {
		t.Errorf("engine called %d times, want 1 (empty line never synthesized)", piper.Calls())
	}
}

func TestCacheHitSkipsEngine(t *testing.T) {
	logger := log.New(io.Discard)
	segCache, err := cache.New(t.TempDir(), 10, logger)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	lines := testLines()[:1]

	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, segCache, piper)
	if _, _, err := s.Run(context.Background(), lines); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if piper.Calls() != 1 {
		t.Fatalf("first run calls = %d, want 1", piper.Calls())
	}

	// A fresh synthesizer over the same cache must serve the segment
	// without touching any engine.
	piper2 := engine.NewMockKind(engine.KindPiper)
	s2 := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, segCache, piper2)
	segments, _, err := s2.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if piper2.Calls() != 0 {
		t.Errorf("second run calls = %d, want 0", piper2.Calls())
	}
	if !segments[0].Cached {
		t.Error("segment not marked cached")
	}
	if segments[0].Engine != engine.KindPiper {
		t.Errorf("cached segment engine = %s, want piper", segments[0].Engine)
	}
}

func TestRunCancelled(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, nil, piper)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Run(ctx, testLines())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestScriptText(t *testing.T) {
	piper := engine.NewMockKind(engine.KindPiper)
	s := newTestSynthesizer(t, Config{Mode: script.ModeDialogue}, nil, piper)

	lines := []script.DialogueLine{
		{Speaker: script.SpeakerHost, Text: "Hello **there**."},
		{Speaker: script.SpeakerExpert, Text: "Hi. [PAUSE] Good to be here."},
	}
	got := s.ScriptText(lines)
	want := "HOST: Hello there.\nEXPERT: Hi. Good to be here.\n"
	if got != want {
		t.Errorf("ScriptText = %q, want %q", got, want)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"abort", PolicyAbort, false},
		{"placeholder", PolicyPlaceholder, false},
		{"", PolicyPlaceholder, false},
		{"retry", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
