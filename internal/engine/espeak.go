package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/charmbracelet/log"
)

// ESpeak is the offline lightweight engine backed by espeak-ng. Quality is
// robotic but it has no model files to manage and works everywhere the
// binary installs, which makes it the first offline fallback.
type ESpeak struct {
	binary  string
	timeout time.Duration
	log     *log.Logger
}

// NewESpeak creates the espeak-ng adapter.
func NewESpeak(cfg Config, logger *log.Logger) *ESpeak {
	return &ESpeak{
		binary:  cfg.ESpeakBinary,
		timeout: cfg.ESpeakTimeout,
		log:     logger.WithPrefix("espeak"),
	}
}

// Kind implements Engine.
func (e *ESpeak) Kind() Kind { return KindESpeak }

// Available implements Engine.
func (e *ESpeak) Available() bool {
	return binaryOnPath(e.binary)
}

// Synthesize implements Engine. espeak-ng writes the WAV file itself via -w.
func (e *ESpeak) Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error) {
	outPath := basePath + ".wav"

	args := []string{
		"-v", profile.Param("voice", "en"),
		"-s", profile.Param("rate", "160"),
		"-p", profile.Param("pitch", "50"),
		"-w", outPath,
		"--stdin",
	}

	if _, err := runCommand(ctx, e.timeout, text, e.binary, args...); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		os.Remove(outPath)
		return nil, fmt.Errorf("espeak produced no audio: %w", ErrSynthesisFailed)
	}
	pcm, rate, _, err := audio.DecodeWAV(data)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("espeak output unreadable: %v: %w", err, ErrSynthesisFailed)
	}

	return &Result{
		Path:     outPath,
		Duration: audio.PCMDuration(len(pcm), rate),
		Engine:   KindESpeak,
	}, nil
}
