//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// Player plays a finished episode through the default audio device.
type Player struct {
	log *log.Logger
}

// NewPlayer creates a player.
func NewPlayer(logger *log.Logger) *Player {
	return &Player{log: logger.WithPrefix("play")}
}

// PlayFile plays an episode file, blocking until playback completes or ctx
// is cancelled. WAV plays natively; other containers are decoded through
// the same tool chain the assembler uses.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	pcm, rate, channels, err := DecodeWAV(data)
	if err != nil {
		// Compressed episode: decode via external tools.
		a := NewAssembler(AssembleConfig{SampleRate: 44100}, p.log)
		pcm, err = a.convertWithTools(ctx, path)
		if err != nil {
			return fmt.Errorf("decode for playback: %w", err)
		}
		rate, channels = 44100, 1
	}
	if channels == 2 {
		pcm = DownmixStereo(pcm)
		channels = 1
	}

	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	p.log.Info("playing", "path", path, "duration", PCMDuration(len(pcm), rate))

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}
