package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	stopTimeout = 1200 * time.Millisecond
	// waitDelay bounds how long Wait blocks on output held open by orphaned
	// children after the process itself exited.
	waitDelay = 500 * time.Millisecond
)

// ProcessPlayback is a running output process. It implements ports.Playback.
type ProcessPlayback struct {
	process *os.Process
	stderr  *bytes.Buffer
	waitErr chan error
	done    chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

// StartProcess runs name with args, feeding stdin when it is non-nil. The
// process is killed when ctx is cancelled.
func StartProcess(ctx context.Context, name string, args []string, stdin io.Reader) (*ProcessPlayback, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = stdin
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &ProcessPlayback{
		process: cmd.Process,
		stderr:  &stderr,
		waitErr: make(chan error, 1),
		done:    make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		p.finish(ctx, err)
		p.waitErr <- err
		close(p.waitErr)
	}()

	return p, nil
}

func (p *ProcessPlayback) Done() <-chan struct{} {
	return p.done
}

// Err reports why the process ended. It is context.Canceled after Stop or
// cancellation.
func (p *ProcessPlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop interrupts the process and waits for it to exit.
func (p *ProcessPlayback) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	_ = terminate(p.process, p.waitErr)
	<-p.done
	return nil
}

func (p *ProcessPlayback) finish(ctx context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.stopped:
		p.err = context.Canceled
	case ctx.Err() != nil:
		p.err = ctx.Err()
	case err != nil:
		if output := trimOutput(p.stderr.String()); output != "" {
			err = fmt.Errorf("%w: %s", err, output)
		}
		p.err = err
	}
	close(p.done)
}

// terminate interrupts process and escalates to kill when it does not exit in
// time. It returns the process wait error.
func terminate(process *os.Process, waitErr <-chan error) error {
	if process != nil {
		_ = process.Signal(os.Interrupt)
	}

	select {
	case err, ok := <-waitErr:
		if ok {
			return err
		}
		return nil
	case <-time.After(stopTimeout):
		if process != nil {
			_ = process.Kill()
		}
		err, ok := <-waitErr
		if ok {
			return err
		}
		return nil
	}
}

func ignoreExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	return strings.TrimSpace(input)
}
