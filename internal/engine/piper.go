package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"
)

// Piper is the offline neural engine. Each synthesis runs a fresh piper
// process fed over pre-configured stdin, capturing raw PCM from stdout.
type Piper struct {
	binary   string
	modelDir string
	timeout  time.Duration
	log      *log.Logger
}

// NewPiper creates the piper adapter.
func NewPiper(cfg Config, logger *log.Logger) *Piper {
	return &Piper{
		binary:   cfg.PiperBinary,
		modelDir: cfg.PiperModelDir,
		timeout:  cfg.PiperTimeout,
		log:      logger.WithPrefix("piper"),
	}
}

// Kind implements Engine.
func (p *Piper) Kind() Kind { return KindPiper }

// Available implements Engine.
func (p *Piper) Available() bool {
	return binaryOnPath(p.binary)
}

// Synthesize implements Engine. The profile's model file is validated before
// the subprocess is launched so a missing model fails fast as ErrModelMissing
// instead of a confusing piper stderr dump.
func (p *Piper) Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error) {
	modelPath, err := p.resolveModel(profile)
	if err != nil {
		return nil, err
	}
	configPath := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"

	args := []string{
		"--model", modelPath,
		"--output-raw",
	}
	if _, err := os.Stat(configPath); err == nil {
		args = append(args, "--config", configPath)
	}
	if speaker := profile.Param("speaker", ""); speaker != "" {
		args = append(args, "--speaker", speaker)
	}
	if scale := profile.Param("length_scale", ""); scale != "" {
		args = append(args, "--length-scale", scale)
	}

	pcm, err := runCommand(ctx, p.timeout, text, p.binary, args...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("piper produced no audio: %w", ErrSynthesisFailed)
	}

	rate := profile.sampleRate(22050)
	outPath := basePath + ".wav"
	if err := os.WriteFile(outPath, audio.EncodeWAV(pcm, rate), 0o644); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("write segment: %w", err)
	}

	return &Result{
		Path:     outPath,
		Duration: audio.PCMDuration(len(pcm), rate),
		Engine:   KindPiper,
	}, nil
}

// resolveModel maps the profile's model parameter to an on-disk .onnx file.
func (p *Piper) resolveModel(profile Profile) (string, error) {
	model := profile.Param("model", "")
	if model == "" {
		return "", fmt.Errorf("profile %q has no model parameter: %w", profile.ID, ErrModelMissing)
	}

	path := model
	if !strings.HasSuffix(path, ".onnx") {
		path += ".onnx"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.modelDir, path)
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand model path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model %s: %w", path, ErrModelMissing)
	}
	return path, nil
}

// sampleRate parses the profile's sample_rate parameter.
func (p Profile) sampleRate(def int) int {
	if v := p.Param("sample_rate", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
