//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// Stub implementation for builds without CGO audio support. Episode
// generation works normally; only --play is disabled.

// Player plays a finished episode through the default audio device.
type Player struct {
	log *log.Logger
}

// NewPlayer creates a player.
func NewPlayer(logger *log.Logger) *Player {
	return &Player{log: logger.WithPrefix("play")}
}

// PlayFile reports that playback is unavailable in this build.
func (p *Player) PlayFile(_ context.Context, _ string) error {
	return errors.New("audio playback not available in nocgo build")
}
