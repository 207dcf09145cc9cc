// Package episode defines the final generation artifact: the assembled
// audio plus the normalized script and a serializable metadata record.
package episode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/Jai1122/ConvoCast/internal/synth"
)

// LineRecord is the per-line synthesis outcome kept for diagnostics.
type LineRecord struct {
	Index       int    `json:"index"`
	Speaker     string `json:"speaker"`
	Engine      string `json:"engine,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Cached      bool   `json:"cached,omitempty"`
	// FailedAttempts lists the engines that failed or were skipped before
	// this line's engine succeeded.
	FailedAttempts []string `json:"failed_attempts,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Metadata is the structured episode record, suitable for direct
// serialization.
type Metadata struct {
	Title        string       `json:"title"`
	GeneratedAt  time.Time    `json:"generated_at"`
	Format       string       `json:"format"`
	DurationMS   int64        `json:"duration_ms"`
	SegmentCount int          `json:"segment_count"`
	Speakers     []string     `json:"speakers"`
	EnginesUsed  []string     `json:"engines_used"`
	Lines        []LineRecord `json:"lines"`
}

// Episode is the assembled artifact. Never mutated after Write; a rerun
// creates a new episode or overwrites by explicit path.
type Episode struct {
	AudioPath    string
	ScriptPath   string
	MetadataPath string
	Metadata     Metadata
}

// Build assembles the metadata record from the run's outputs. The format is
// derived from the final audio path since assembly may have degraded it.
func Build(title string, lines []script.DialogueLine, segments []synth.Segment, failures []synth.LineFailure, audioPath string, total time.Duration) *Episode {
	failureByIndex := make(map[int]string, len(failures))
	for _, f := range failures {
		failureByIndex[f.Index] = f.Err.Error()
	}

	records := make([]LineRecord, len(segments))
	for i, s := range segments {
		var attempts []string
		for _, a := range s.Attempts {
			attempts = append(attempts, a.String())
		}
		records[i] = LineRecord{
			Index:          s.Index,
			Speaker:        string(s.Speaker),
			Engine:         string(s.Engine),
			DurationMS:     s.Duration.Milliseconds(),
			Placeholder:    s.Placeholder,
			Cached:         s.Cached,
			FailedAttempts: attempts,
			Error:          failureByIndex[s.Index],
		}
	}

	var speakers []string
	for _, sp := range script.Speakers(lines) {
		speakers = append(speakers, string(sp))
	}
	var engines []string
	for _, k := range synth.EnginesUsed(segments) {
		engines = append(engines, string(k))
	}

	return &Episode{
		AudioPath: audioPath,
		Metadata: Metadata{
			Title:        title,
			GeneratedAt:  time.Now().UTC(),
			Format:       strings.TrimPrefix(filepath.Ext(audioPath), "."),
			DurationMS:   total.Milliseconds(),
			SegmentCount: len(segments),
			Speakers:     speakers,
			EnginesUsed:  engines,
			Lines:        records,
		},
	}
}

// Write persists the script text and metadata JSON beside the audio file.
func (e *Episode) Write(scriptText string) error {
	base := strings.TrimSuffix(e.AudioPath, filepath.Ext(e.AudioPath))

	e.ScriptPath = base + ".txt"
	if err := os.WriteFile(e.ScriptPath, []byte(scriptText), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}

	data, err := json.MarshalIndent(e.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	e.MetadataPath = base + ".json"
	if err := os.WriteFile(e.MetadataPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// DefaultAudioPath generates a timestamped output path so reruns never
// silently clobber a previous episode.
func DefaultAudioPath(dir, title, format string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "episode"
	}
	name := fmt.Sprintf("%s-%s.%s", slug, time.Now().Format("20060102-150405"), format)
	return filepath.Join(dir, name)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
