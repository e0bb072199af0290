package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dualchat/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm-frames'\nexec sleep 2\n")
	capture := NewFFMPEGCapture(script)
	if !capture.Available() {
		t.Fatalf("expected script to be available")
	}

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 32)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.HasPrefix("pcm-frames", string(buf[:n])) {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") || !strings.Contains(err.Error(), "no such device") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFMPEGCaptureUnavailableCommand(t *testing.T) {
	t.Parallel()

	capture := NewFFMPEGCapture(filepath.Join(t.TempDir(), "missing-ffmpeg"))
	if capture.Available() {
		t.Fatalf("expected missing command to be unavailable")
	}
	if _, err := capture.Start(context.Background(), ports.AudioConfig{}); err == nil {
		t.Fatalf("expected start error")
	}
}

func TestCaptureArgsApplyDefaults(t *testing.T) {
	t.Parallel()

	got := strings.Join(captureArgs(withCaptureDefaults(ports.AudioConfig{})), " ")
	want := "-nostdin -hide_banner -loglevel warning -f pulse -i default -ac 1 -ar 16000 -f s16le -"
	if got != want {
		t.Fatalf("unexpected args:\n got %q\nwant %q", got, want)
	}

	got = strings.Join(captureArgs(withCaptureDefaults(ports.AudioConfig{
		SampleRate:  48000,
		Channels:    2,
		InputFormat: "alsa",
		InputDevice: "hw:1",
	})), " ")
	if !strings.Contains(got, "-f alsa -i hw:1 -ac 2 -ar 48000") {
		t.Fatalf("unexpected custom args: %q", got)
	}
}

func TestIgnoreExitErr(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := ignoreExitErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
