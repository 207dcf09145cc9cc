// Package engine provides the text-to-speech engine adapters and the
// fallback chain that selects among them.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Kind identifies a TTS backend.
type Kind string

const (
	// KindPiper is the offline neural engine (piper subprocess).
	KindPiper Kind = "piper"
	// KindESpeak is the offline lightweight engine (espeak-ng subprocess).
	KindESpeak Kind = "espeak"
	// KindSay is the platform-native engine (macOS say).
	KindSay Kind = "say"
	// KindGTTS is the cloud engine (gtts-cli, requires network).
	KindGTTS Kind = "gtts"
	// KindMock is the deterministic in-process engine.
	KindMock Kind = "mock"
)

// FallbackOrder is the fixed engine priority used when a requested engine
// fails or none is requested: offline engines first, network last, mock as
// the terminal safety net.
var FallbackOrder = []Kind{KindPiper, KindESpeak, KindSay, KindGTTS, KindMock}

// ParseKind validates an engine name from flags or config.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPiper, KindESpeak, KindSay, KindGTTS, KindMock:
		return Kind(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid engine %q (valid: piper, espeak, say, gtts, mock)", s)
}

// Profile is a named bundle of engine choice plus engine-specific voice
// parameters. Profiles are never mutated after registry load.
type Profile struct {
	ID     string
	Engine Kind
	Params map[string]string
}

// Param returns a profile parameter or a default when unset.
func (p Profile) Param(key, def string) string {
	if v, ok := p.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Result describes one successful synthesis.
type Result struct {
	Path     string
	Duration time.Duration
	Engine   Kind
	// Attempts holds the failed or skipped engines walked before this
	// synthesis succeeded. Populated by the fallback chain and carried into
	// episode metadata; adapters leave it empty.
	Attempts []Attempt
}

// Engine is the uniform adapter contract across all backend kinds.
type Engine interface {
	// Kind identifies the backend.
	Kind() Kind

	// Available is a cheap local capability probe. It never errors.
	Available() bool

	// Synthesize converts one line of text to an audio file. basePath is the
	// output path without extension; the adapter appends its native format
	// extension and returns the final path. On failure any partial output is
	// removed before returning.
	Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error)
}

// Registry holds the engine set for one generation run. Availability probes
// are cached for the registry's lifetime; capability does not change
// mid-run, but synthesis failures are never cached.
type Registry struct {
	engines map[Kind]Engine

	mu     sync.Mutex
	probes map[Kind]bool

	log *log.Logger
}

// NewRegistry builds a registry from explicit engines. Used directly by
// tests; production runs go through Default.
func NewRegistry(logger *log.Logger, engines ...Engine) *Registry {
	m := make(map[Kind]Engine, len(engines))
	for _, e := range engines {
		m[e.Kind()] = e
	}
	return &Registry{
		engines: m,
		probes:  make(map[Kind]bool),
		log:     logger,
	}
}

// Default builds the full production engine set from config.
func Default(cfg Config, logger *log.Logger) *Registry {
	return NewRegistry(logger,
		NewPiper(cfg, logger),
		NewESpeak(cfg, logger),
		NewSay(cfg, logger),
		NewGTTS(cfg, logger),
		NewMock(),
	)
}

// Get returns the engine for a kind, if registered.
func (r *Registry) Get(kind Kind) (Engine, bool) {
	e, ok := r.engines[kind]
	return e, ok
}

// Available reports whether an engine kind is usable, caching the probe.
func (r *Registry) Available(kind Kind) bool {
	e, ok := r.engines[kind]
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ok, probed := r.probes[kind]; probed {
		return ok
	}
	avail := e.Available()
	r.probes[kind] = avail
	if !avail {
		r.log.Debug("engine unavailable", "engine", kind)
	}
	return avail
}

// Kinds returns the registered kinds in fallback priority order.
func (r *Registry) Kinds() []Kind {
	var kinds []Kind
	for _, k := range FallbackOrder {
		if _, ok := r.engines[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Config holds engine adapter settings. Values load from the environment
// and are overlaid by flags/config file in main.
type Config struct {
	SampleRate int `env:"CONVOCAST_SAMPLE_RATE" envDefault:"22050"`

	PiperBinary   string        `env:"CONVOCAST_PIPER_BINARY" envDefault:"piper"`
	PiperModelDir string        `env:"CONVOCAST_PIPER_MODEL_DIR"`
	PiperTimeout  time.Duration `env:"CONVOCAST_PIPER_TIMEOUT" envDefault:"30s"`

	ESpeakBinary  string        `env:"CONVOCAST_ESPEAK_BINARY" envDefault:"espeak-ng"`
	ESpeakTimeout time.Duration `env:"CONVOCAST_ESPEAK_TIMEOUT" envDefault:"10s"`

	SayTimeout time.Duration `env:"CONVOCAST_SAY_TIMEOUT" envDefault:"30s"`

	GTTSBinary         string        `env:"CONVOCAST_GTTS_BINARY" envDefault:"gtts-cli"`
	GTTSTimeout        time.Duration `env:"CONVOCAST_GTTS_TIMEOUT" envDefault:"30s"`
	GTTSMaxChunkChars  int           `env:"CONVOCAST_GTTS_MAX_CHUNK_CHARS" envDefault:"200"`
	GTTSRequestsPerMin int           `env:"CONVOCAST_GTTS_REQUESTS_PER_MIN" envDefault:"50"`
}
