package script

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// defaultPauseDur is used for pause cues without an explicit duration.
const defaultPauseDur = 500 * time.Millisecond

// cueVocabulary is the fixed recognized-token table. Bracketed tokens not in
// this table (and without a custom prefix) are stripped and logged.
var cueVocabulary = map[string]CueKind{
	"PAUSE":    CuePause,
	"BREAK":    CuePause,
	"SILENCE":  CuePause,
	"LAUGH":    CueLaugh,
	"LAUGHS":   CueLaugh,
	"LAUGHTER": CueLaugh,
	"CHUCKLES": CueLaugh,
	"EXCITED":  CueEmphasis,
	"EMPHASIS": CueEmphasis,
}

// customCuePrefix marks labeled production cues, e.g. [SFX:ding].
const customCuePrefix = "SFX:"

// Normalizer turns raw dialogue text into backend-safe plain text plus the
// extracted cue list. Normalization is idempotent.
type Normalizer struct {
	speakerLabel *regexp.Regexp
	link         *regexp.Regexp
	strong       *regexp.Regexp
	emphasis     *regexp.Regexp
	inlineCode   *regexp.Regexp
	htmlTag      *regexp.Regexp
	repeatPunct  *regexp.Regexp
	whitespace   *regexp.Regexp
	bracket      *regexp.Regexp

	log *log.Logger
}

// NewNormalizer compiles the markup-stripping patterns.
func NewNormalizer(logger *log.Logger) *Normalizer {
	return &Normalizer{
		speakerLabel: regexp.MustCompile(`^[A-Z][A-Za-z0-9_'-]{0,23}:\s+`),
		link:         regexp.MustCompile(`\[([^\[\]]+)\]\(([^)]*)\)`),
		strong:       regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`),
		emphasis:     regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`),
		inlineCode:   regexp.MustCompile("`([^`]+)`"),
		htmlTag:      regexp.MustCompile(`<[^>]+>`),
		repeatPunct:  regexp.MustCompile(`([.!?,;:])[.!?,;:]+`),
		whitespace:   regexp.MustCompile(`\s+`),
		bracket:      regexp.MustCompile(`\[([^\[\]]+)\]`),
		log:          logger.WithPrefix("normalize"),
	}
}

// Normalize strips markup and structural markers from one line of dialogue,
// returning plain text plus the cues found, in text order. Normalizing
// already-normalized text returns it unchanged.
func (n *Normalizer) Normalize(raw string) (string, []Cue) {
	text := raw

	// The speaker is known structurally; a leading NAME: label is noise.
	// Loop so a line that still starts with a label after one strip (e.g.
	// pasted "ALEX: SAM: ...") reaches a fixpoint, keeping idempotence.
	for {
		stripped := n.speakerLabel.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}

	// Markdown and HTML markup, keeping the spoken words.
	text = n.link.ReplaceAllString(text, "$1")
	text = n.strong.ReplaceAllString(text, "$1$2")
	text = n.emphasis.ReplaceAllString(text, "$1$2")
	text = n.inlineCode.ReplaceAllString(text, "$1")
	text = n.htmlTag.ReplaceAllString(text, " ")

	text = n.repeatPunct.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(n.whitespace.ReplaceAllString(text, " "))

	return n.extractCues(text)
}

// extractCues removes bracketed tokens from near-final text, recording
// recognized ones with their offset in the returned plain text.
func (n *Normalizer) extractCues(text string) (string, []Cue) {
	matches := n.bracket.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text, nil
	}

	var cues []Cue
	var b strings.Builder
	last := 0
	for _, m := range matches {
		segment := text[last:m[0]]
		if b.Len() == 0 {
			segment = strings.TrimLeft(segment, " ")
		}
		b.WriteString(segment)

		token := strings.TrimSpace(text[m[2]:m[3]])
		offset := len(strings.TrimRight(b.String(), " "))
		if cue, ok := parseCue(token, offset); ok {
			cues = append(cues, cue)
		} else {
			n.log.Debug("stripping unrecognized cue token", "token", token)
		}

		last = m[1]
		// Swallow one of the spaces surrounding the removed token.
		if strings.HasSuffix(b.String(), " ") && last < len(text) && text[last] == ' ' {
			last++
		}
	}
	b.WriteString(text[last:])

	out := strings.TrimSpace(b.String())
	for i := range cues {
		if cues[i].Offset > len(out) {
			cues[i].Offset = len(out)
		}
	}
	return out, cues
}

// parseCue maps a bracketed token to a Cue. Pause tokens accept an explicit
// millisecond duration ("PAUSE:800").
func parseCue(token string, offset int) (Cue, bool) {
	upper := strings.ToUpper(token)

	if strings.HasPrefix(upper, customCuePrefix) {
		label := strings.TrimSpace(token[len(customCuePrefix):])
		return Cue{Kind: CueCustom, Offset: offset, Label: label}, label != ""
	}

	name, arg := upper, ""
	if i := strings.IndexByte(upper, ':'); i >= 0 {
		name, arg = upper[:i], strings.TrimSpace(upper[i+1:])
	}

	kind, ok := cueVocabulary[name]
	if !ok {
		return Cue{}, false
	}

	cue := Cue{Kind: kind, Offset: offset}
	if kind == CuePause {
		cue.Duration = defaultPauseDur
		if arg != "" {
			if ms, err := strconv.Atoi(arg); err == nil && ms > 0 {
				cue.Duration = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return cue, true
}
