package audio

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"dualchat/internal/ports"
)

// FFPlayPlayer plays encoded audio (mp3) by piping it into ffplay.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

// Available reports whether the player command can be found.
func (p *FFPlayPlayer) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) (ports.Playback, error) {
	if len(audio) == 0 {
		return nil, errors.New("no audio to play")
	}
	args := []string{"-nodisp", "-autoexit", "-hide_banner", "-loglevel", "error", "-i", "-"}
	return StartProcess(ctx, p.command, args, bytes.NewReader(audio))
}
