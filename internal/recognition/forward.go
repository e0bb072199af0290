package recognition

import (
	"errors"
	"fmt"
	"io"
	"time"

	"dualchat/internal/ports"
)

var errStreamSend = errors.New("failed to stream audio")

// forwardAudio copies microphone audio to the stream in chunkSize pieces
// until the microphone reaches EOF.
func forwardAudio(mic ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	chunk := make([]byte, chunkSize)
	for {
		n, readErr := mic.Read(chunk)
		if n > 0 {
			if err := stream.SendAudio(chunk[:n]); err != nil {
				return fmt.Errorf("%w: %w", errStreamSend, err)
			}
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			return nil
		default:
			return fmt.Errorf("audio capture error: %w", readErr)
		}
	}
}

// awaitStream waits for the provider to finish, closing the stream when it
// does not settle within timeout.
func awaitStream(stream ports.StreamingSession, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		result <- stream.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		_ = stream.Close()
		return <-result
	}
}
