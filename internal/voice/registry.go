// Package voice provides the static voice profile registry and the
// speaker-to-profile resolution rules.
package voice

import (
	"fmt"
	"sort"

	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
)

// builtinProfiles is the declarative profile table. Profiles are read-only
// after registry construction; lookups are safe for concurrent use.
var builtinProfiles = []engine.Profile{
	{ID: "piper-amy", Engine: engine.KindPiper, Params: map[string]string{
		"model": "en_US-amy-medium", "locale": "en-US", "gender": "female", "sample_rate": "22050",
	}},
	{ID: "piper-ryan", Engine: engine.KindPiper, Params: map[string]string{
		"model": "en_US-ryan-medium", "locale": "en-US", "gender": "male", "sample_rate": "22050",
	}},
	{ID: "espeak-female", Engine: engine.KindESpeak, Params: map[string]string{
		"voice": "en+f3", "locale": "en-US", "gender": "female", "rate": "160", "pitch": "60",
	}},
	{ID: "espeak-male", Engine: engine.KindESpeak, Params: map[string]string{
		"voice": "en+m3", "locale": "en-US", "gender": "male", "rate": "160", "pitch": "40",
	}},
	{ID: "say-samantha", Engine: engine.KindSay, Params: map[string]string{
		"voice": "Samantha", "locale": "en-US", "gender": "female",
	}},
	{ID: "say-alex", Engine: engine.KindSay, Params: map[string]string{
		"voice": "Alex", "locale": "en-US", "gender": "male",
	}},
	{ID: "gtts-en", Engine: engine.KindGTTS, Params: map[string]string{
		"lang": "en", "locale": "en-US",
	}},
	{ID: "mock-voice", Engine: engine.KindMock, Params: map[string]string{
		"locale": "en-US",
	}},
}

// speakerDefaults maps the fixed dialogue roles to profile ids: the host
// gets a female-coded voice and the expert a male-coded one, matching the
// two-speaker episode format. Explicit per-run overrides win.
var speakerDefaults = map[script.SpeakerID]string{
	script.SpeakerHost:   "piper-amy",
	script.SpeakerExpert: "piper-ryan",
}

// qaDefault is the single-voice profile for Q&A mode speakers without an
// explicit mapping.
const qaDefault = "piper-amy"

// Registry resolves profile ids and speakers to voice profiles.
type Registry struct {
	profiles  map[string]engine.Profile
	overrides map[script.SpeakerID]string
	log       *log.Logger
}

// NewRegistry builds the registry from the builtin table plus per-run
// speaker overrides (speaker → profile id). Locale parameters are validated
// at construction so a bad profile fails the run before synthesis starts.
func NewRegistry(overrides map[string]string, logger *log.Logger) (*Registry, error) {
	r := &Registry{
		profiles:  make(map[string]engine.Profile, len(builtinProfiles)),
		overrides: make(map[script.SpeakerID]string, len(overrides)),
		log:       logger.WithPrefix("voice"),
	}

	for _, p := range builtinProfiles {
		if loc := p.Params["locale"]; loc != "" {
			if _, err := language.Parse(loc); err != nil {
				return nil, fmt.Errorf("profile %s: invalid locale %q: %w", p.ID, loc, err)
			}
		}
		r.profiles[p.ID] = p
	}

	for speaker, id := range overrides {
		if _, ok := r.profiles[id]; !ok {
			return nil, fmt.Errorf("override for speaker %q: %w: %s", speaker, engine.ErrUnknownProfile, id)
		}
		r.overrides[script.SpeakerID(speaker)] = id
	}
	return r, nil
}

// Resolve looks up a profile by id.
func (r *Registry) Resolve(id string) (engine.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return engine.Profile{}, fmt.Errorf("%w: %s", engine.ErrUnknownProfile, id)
	}
	return p, nil
}

// ResolveForSpeaker applies the speaker→profile default map, overridden by
// explicit per-run configuration.
func (r *Registry) ResolveForSpeaker(speaker script.SpeakerID, mode script.Mode) (engine.Profile, error) {
	if id, ok := r.overrides[speaker]; ok {
		return r.Resolve(id)
	}
	if id, ok := speakerDefaults[speaker]; ok {
		return r.Resolve(id)
	}
	if mode == script.ModeQA {
		return r.Resolve(qaDefault)
	}
	return engine.Profile{}, fmt.Errorf("%w: no profile mapped for speaker %q", engine.ErrUnknownProfile, speaker)
}

// ProfileIDs lists the known profile ids, sorted, for CLI help output.
func (r *Registry) ProfileIDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
