package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Part is one ordered input to assembly: a segment file plus the extra
// cue-derived silence that follows it. Temp parts are deleted once durably
// incorporated into the episode (on every exit path).
type Part struct {
	Path     string
	ExtraGap time.Duration
	Temp     bool
}

// AssembleConfig holds assembly settings.
type AssembleConfig struct {
	// SampleRate is the normalization target for all segments.
	SampleRate int
	// Format is the output container: "mp3" or "wav".
	Format string
	// Gap is the base inter-turn silence inserted between segments.
	Gap time.Duration
}

// Assembler concatenates ordered segments into one episode audio file.
//
// Format conversion follows the same try-in-priority-order discipline as the
// engine chain: ffmpeg, then sox, then an in-process WAV decode/re-encode.
// When no external tool can produce the requested lossy format, the output
// degrades to WAV (lossless, universally supported) instead of failing the
// run.
type Assembler struct {
	cfg AssembleConfig
	log *log.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(cfg AssembleConfig, logger *log.Logger) *Assembler {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	return &Assembler{cfg: cfg, log: logger.WithPrefix("assemble")}
}

// Assemble merges parts in order into outPath, returning the actual output
// path (the extension changes if the format degraded) and total duration.
// Segment order is never changed; between parts it inserts the base gap plus
// the preceding part's cue silence.
func (a *Assembler) Assemble(ctx context.Context, parts []Part, outPath string) (string, time.Duration, error) {
	defer a.cleanup(parts)

	if len(parts) == 0 {
		return "", 0, fmt.Errorf("no segments to assemble: %w", ErrAssemblyFailed)
	}

	var pcm []byte
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		segment, err := a.normalizePart(ctx, part.Path)
		if err != nil {
			return "", 0, fmt.Errorf("segment %d (%s): %w", i, filepath.Base(part.Path), err)
		}
		pcm = append(pcm, segment...)

		if i < len(parts)-1 {
			pcm = append(pcm, Silence(a.cfg.Gap+part.ExtraGap, a.cfg.SampleRate)...)
		}
	}

	total := PCMDuration(len(pcm), a.cfg.SampleRate)
	finalPath, err := a.write(ctx, pcm, outPath)
	if err != nil {
		return "", 0, err
	}
	return finalPath, total, nil
}

// normalizePart loads one segment as mono 16-bit PCM at the target rate.
func (a *Assembler) normalizePart(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Fast path: already a WAV at the target shape.
	if pcm, rate, channels, derr := DecodeWAV(data); derr == nil {
		if channels == 2 {
			pcm = DownmixStereo(pcm)
		}
		if rate != a.cfg.SampleRate {
			// Prefer an external resampler when present.
			if out, terr := a.convertWithTools(ctx, path); terr == nil {
				return out, nil
			}
			pcm = Resample(pcm, rate, a.cfg.SampleRate)
		}
		return pcm, nil
	}

	// Non-WAV native format (e.g. cloud MP3): external tools are the only
	// decoders available.
	out, err := a.convertWithTools(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrConversionFailed)
	}
	return out, nil
}

// convertWithTools decodes any input to mono PCM at the target rate via the
// tool fallback chain, stopping at the first success.
func (a *Assembler) convertWithTools(ctx context.Context, path string) ([]byte, error) {
	var errs []string

	if toolOnPath("ffmpeg") {
		out, err := a.runTool(ctx, "ffmpeg",
			"-i", path,
			"-f", "s16le",
			"-ar", strconv.Itoa(a.cfg.SampleRate),
			"-ac", "1",
			"-",
		)
		if err == nil {
			return out, nil
		}
		errs = append(errs, "ffmpeg: "+err.Error())
	} else {
		errs = append(errs, "ffmpeg: not on PATH")
	}

	if toolOnPath("sox") {
		out, err := a.runTool(ctx, "sox",
			path,
			"-t", "raw",
			"-r", strconv.Itoa(a.cfg.SampleRate),
			"-e", "signed-integer",
			"-b", "16",
			"-c", "1",
			"-",
		)
		if err == nil {
			return out, nil
		}
		errs = append(errs, "sox: "+err.Error())
	} else {
		errs = append(errs, "sox: not on PATH")
	}

	return nil, fmt.Errorf("no conversion tool succeeded: [%s]", strings.Join(errs, "; "))
}

// write encodes the final PCM to the requested format, degrading to WAV
// when no encoder is usable.
func (a *Assembler) write(ctx context.Context, pcm []byte, outPath string) (string, error) {
	wav := EncodeWAV(pcm, a.cfg.SampleRate)

	if a.cfg.Format == "mp3" {
		if path, err := a.encodeMP3(ctx, wav, outPath); err == nil {
			return path, nil
		} else {
			a.log.Warn("mp3 encoding unavailable, falling back to wav", "err", err)
		}
	}

	wavPath := replaceExt(outPath, ".wav")
	if err := os.WriteFile(wavPath, wav, 0o644); err != nil {
		return "", fmt.Errorf("write episode: %v: %w", err, ErrAssemblyFailed)
	}
	return wavPath, nil
}

func (a *Assembler) encodeMP3(ctx context.Context, wav []byte, outPath string) (string, error) {
	mp3Path := replaceExt(outPath, ".mp3")

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "assemble-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()

	var errs []string
	if toolOnPath("ffmpeg") {
		_, err := a.runTool(ctx, "ffmpeg", "-y", "-i", tmp.Name(), "-b:a", "128k", mp3Path)
		if err == nil {
			return mp3Path, nil
		}
		os.Remove(mp3Path)
		errs = append(errs, "ffmpeg: "+err.Error())
	} else {
		errs = append(errs, "ffmpeg: not on PATH")
	}

	if toolOnPath("sox") {
		_, err := a.runTool(ctx, "sox", tmp.Name(), "-C", "128", mp3Path)
		if err == nil {
			return mp3Path, nil
		}
		os.Remove(mp3Path)
		errs = append(errs, "sox: "+err.Error())
	} else {
		errs = append(errs, "sox: not on PATH")
	}

	return "", fmt.Errorf("%s: %w", strings.Join(errs, "; "), ErrConversionFailed)
}

func (a *Assembler) runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%v: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// cleanup deletes temp segment files. Runs on every exit path so failed
// assemblies do not leak scratch audio.
func (a *Assembler) cleanup(parts []Part) {
	for _, p := range parts {
		if p.Temp {
			if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
				a.log.Debug("cleanup failed", "path", p.Path, "err", err)
			}
		}
	}
}

func toolOnPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
