// Package script defines the dialogue model and the text normalizer that
// prepares lines for speech synthesis.
package script

import (
	"fmt"
	"strings"
	"time"
)

// SpeakerID labels who speaks a line. Two-speaker dialogue uses the fixed
// host/expert roles; Q&A mode accepts arbitrary labels.
type SpeakerID string

const (
	SpeakerHost   SpeakerID = "host"
	SpeakerExpert SpeakerID = "expert"
)

// Mode selects the conversation format.
type Mode string

const (
	ModeDialogue Mode = "dialogue"
	ModeQA       Mode = "qa"
)

// ParseMode validates a mode name from flags or config.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDialogue, ModeQA:
		return Mode(s), nil
	case "":
		return ModeDialogue, nil
	}
	return "", fmt.Errorf("invalid mode %q (valid: dialogue, qa)", s)
}

// CueKind enumerates the structural audio-production instructions that can
// be embedded in dialogue text.
type CueKind int

const (
	CuePause CueKind = iota
	CueEmphasis
	CueLaugh
	CueCustom
)

func (k CueKind) String() string {
	switch k {
	case CuePause:
		return "pause"
	case CueEmphasis:
		return "emphasis"
	case CueLaugh:
		return "laugh"
	case CueCustom:
		return "custom"
	}
	return "unknown"
}

// Cue is one extracted production instruction, attached at a byte offset in
// the line's normalized text (len(text) marks a line-boundary cue).
type Cue struct {
	Kind     CueKind
	Offset   int
	Duration time.Duration // pause cues only
	Label    string        // custom cues only
}

// DialogueLine is one speaker turn. Immutable once produced by the
// converter; the normalizer returns cleaned text and cues separately.
type DialogueLine struct {
	Speaker SpeakerID
	Text    string
	Cues    []Cue
}

// Render formats lines as a plain "Name: text" transcript.
func Render(lines []DialogueLine) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.ToUpper(string(l.Speaker)))
		b.WriteString(": ")
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Speakers returns the distinct speakers in order of first appearance.
func Speakers(lines []DialogueLine) []SpeakerID {
	seen := make(map[SpeakerID]bool)
	var out []SpeakerID
	for _, l := range lines {
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			out = append(out, l.Speaker)
		}
	}
	return out
}
