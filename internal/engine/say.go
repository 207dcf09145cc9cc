package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/charmbracelet/log"
)

// Say is the platform-native engine wrapping the macOS `say` command. It is
// only available on darwin; on other platforms the probe fails and the
// chain skips it.
type Say struct {
	timeout time.Duration
	log     *log.Logger
}

// NewSay creates the macOS say adapter.
func NewSay(cfg Config, logger *log.Logger) *Say {
	return &Say{
		timeout: cfg.SayTimeout,
		log:     logger.WithPrefix("say"),
	}
}

// Kind implements Engine.
func (s *Say) Kind() Kind { return KindSay }

// Available implements Engine.
func (s *Say) Available() bool {
	return runtime.GOOS == "darwin" && binaryOnPath("say")
}

// Synthesize implements Engine. say is asked for LEI16 WAVE output directly
// so no downstream conversion is needed for the common case.
func (s *Say) Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error) {
	outPath := basePath + ".wav"
	rate := profile.sampleRate(22050)

	args := []string{
		"-o", outPath,
		"--file-format=WAVE",
		fmt.Sprintf("--data-format=LEI16@%d", rate),
	}
	if voice := profile.Param("voice", ""); voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)

	if _, err := runCommand(ctx, s.timeout, "", "say", args...); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		os.Remove(outPath)
		return nil, fmt.Errorf("say produced no audio: %w", ErrSynthesisFailed)
	}
	pcm, gotRate, _, err := audio.DecodeWAV(data)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("say output unreadable: %v: %w", err, ErrSynthesisFailed)
	}

	return &Result{
		Path:     outPath,
		Duration: audio.PCMDuration(len(pcm), gotRate),
		Engine:   KindSay,
	}, nil
}
