package voice

import (
	"errors"
	"io"
	"testing"

	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger { return log.New(io.Discard) }

func TestResolve(t *testing.T) {
	r, err := NewRegistry(nil, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	p, err := r.Resolve("piper-amy")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Engine != engine.KindPiper {
		t.Errorf("engine = %s, want piper", p.Engine)
	}
	if p.Param("model", "") == "" {
		t.Error("piper profile has no model param")
	}

	_, err = r.Resolve("nonexistent")
	if !errors.Is(err, engine.ErrUnknownProfile) {
		t.Errorf("err = %v, want ErrUnknownProfile", err)
	}
}

func TestResolveForSpeaker(t *testing.T) {
	r, err := NewRegistry(nil, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	host, err := r.ResolveForSpeaker(script.SpeakerHost, script.ModeDialogue)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	expert, err := r.ResolveForSpeaker(script.SpeakerExpert, script.ModeDialogue)
	if err != nil {
		t.Fatalf("expert: %v", err)
	}
	if host.ID == expert.ID {
		t.Errorf("host and expert share a voice: %s", host.ID)
	}

	// Unmapped speakers are valid in Q&A mode but not in dialogue mode.
	if _, err := r.ResolveForSpeaker("narrator", script.ModeQA); err != nil {
		t.Errorf("qa fallback: %v", err)
	}
	if _, err := r.ResolveForSpeaker("narrator", script.ModeDialogue); !errors.Is(err, engine.ErrUnknownProfile) {
		t.Errorf("dialogue unmapped speaker err = %v, want ErrUnknownProfile", err)
	}
}

func TestOverrides(t *testing.T) {
	r, err := NewRegistry(map[string]string{"host": "espeak-female"}, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	p, err := r.ResolveForSpeaker(script.SpeakerHost, script.ModeDialogue)
	if err != nil {
		t.Fatalf("ResolveForSpeaker: %v", err)
	}
	if p.ID != "espeak-female" {
		t.Errorf("profile = %s, want espeak-female override", p.ID)
	}
}

func TestOverrideUnknownProfile(t *testing.T) {
	_, err := NewRegistry(map[string]string{"host": "no-such-voice"}, testLogger())
	if !errors.Is(err, engine.ErrUnknownProfile) {
		t.Errorf("err = %v, want ErrUnknownProfile", err)
	}
}

func TestProfileIDsSorted(t *testing.T) {
	r, err := NewRegistry(nil, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	ids := r.ProfileIDs()
	if len(ids) == 0 {
		t.Fatal("no profiles")
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("ids not sorted: %q >= %q", ids[i-1], ids[i])
		}
	}
}
