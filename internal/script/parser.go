package script

import (
	"regexp"
	"strings"
)

var scriptLineRegex = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_' -]{0,31}):\s*(.*)$`)

// ParseScript parses a "NAME: line" transcript into dialogue lines.
// Unlabeled lines continue the previous speaker's turn; leading unlabeled
// text and blank lines are skipped. Speaker labels are case-insensitive.
func ParseScript(text string) []DialogueLine {
	var lines []DialogueLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if m := scriptLineRegex.FindStringSubmatch(raw); m != nil {
			speaker := SpeakerID(strings.ToLower(strings.TrimSpace(m[1])))
			lines = append(lines, DialogueLine{Speaker: speaker, Text: m[2]})
			continue
		}

		// Continuation of the previous turn.
		if len(lines) > 0 {
			last := &lines[len(lines)-1]
			last.Text = strings.TrimSpace(last.Text + " " + raw)
		}
	}
	return lines
}
