// Package audio runs the external processes that capture microphone PCM and
// play synthesized audio.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"dualchat/internal/ports"
)

const defaultStartupGrace = 250 * time.Millisecond

// FFMPEGCapture records the microphone as raw s16le PCM on ffmpeg's stdout.
type FFMPEGCapture struct {
	command      string
	startupGrace time.Duration
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, startupGrace: defaultStartupGrace}
}

// Available reports whether the capture command can be found.
func (c *FFMPEGCapture) Available() bool {
	_, err := exec.LookPath(c.command)
	return err == nil
}

// Start launches the recorder. Sessions that die during the startup grace
// period, usually because the input device is missing, fail here.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, captureArgs(withCaptureDefaults(cfg))...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	pcm, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	stream := &micStream{
		pcm:     pcm,
		stderr:  stderr,
		process: cmd.Process,
		exited:  make(chan error, 1),
	}
	go func() {
		stream.exited <- cmd.Wait()
		close(stream.exited)
	}()

	grace := time.NewTimer(c.startupGrace)
	defer grace.Stop()
	select {
	case err := <-stream.exited:
		if err == nil {
			return nil, errors.New("ffmpeg exited before capture started")
		}
		return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
	case <-grace.C:
		return stream, nil
	}
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// micStream is one running recorder. Reads return PCM until Stop.
type micStream struct {
	pcm     io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	exited  chan error

	once    sync.Once
	stopErr error
}

func (m *micStream) Read(p []byte) (int, error) {
	return m.pcm.Read(p)
}

func (m *micStream) Close() error {
	return m.Stop()
}

// Stop ends the recorder. Non-zero exit codes from the interrupt are expected
// and ignored; repeated calls return the first result.
func (m *micStream) Stop() error {
	m.once.Do(func() {
		err := ignoreExitErr(terminate(m.process, m.exited))
		if closeErr := m.pcm.Close(); err == nil && closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			err = closeErr
		}
		if err != nil && m.stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, trimOutput(m.stderr.String()))
		}
		m.stopErr = err
	})
	return m.stopErr
}
