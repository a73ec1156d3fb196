package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CommandCapturer records through an external encoder such as ffmpeg. Every
// segment runs its own process writing a complete container to stdout; an
// interrupt makes the encoder flush and close the file.
type CommandCapturer struct {
	Program string
	// Input selects the device, e.g. -f pulse -i default.
	Input []string
}

// DefaultCommandCapturer captures the default PulseAudio source with ffmpeg.
func DefaultCommandCapturer() CommandCapturer {
	return CommandCapturer{Program: "ffmpeg", Input: []string{"-f", "pulse", "-i", "default"}}
}

func (c CommandCapturer) Supports(mime string) bool {
	return strings.HasPrefix(mime, "audio/webm") || strings.HasPrefix(mime, "audio/ogg")
}

func (c CommandCapturer) Open(ctx context.Context) (Stream, error) {
	path, err := exec.LookPath(c.Program)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Program, err)
	}
	return &commandStream{path: path, input: c.Input}, nil
}

type commandStream struct {
	path  string
	input []string

	mu      sync.Mutex
	running map[*commandRecorder]struct{}
	closed  bool
}

func (s *commandStream) Record(mime string) (Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("capture stream is closed")
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	args = append(args, s.input...)
	args = append(args, "-vn", "-c:a", "libopus", "-f", Extension(mime), "pipe:1")

	rec := &commandRecorder{stream: s, cmd: exec.Command(s.path, args...)}
	rec.cmd.Stdout = &rec.out
	rec.cmd.Stderr = &rec.stderr
	if err := rec.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	if s.running == nil {
		s.running = make(map[*commandRecorder]struct{})
	}
	s.running[rec] = struct{}{}
	return rec, nil
}

// Close kills any encoder still running.
func (s *commandStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	for rec := range s.running {
		if err := rec.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
	}
	s.running = nil
	return errors.Join(errs...)
}

type commandRecorder struct {
	stream *commandStream
	cmd    *exec.Cmd
	out    bytes.Buffer
	stderr bytes.Buffer
}

func (r *commandRecorder) Stop() ([]byte, error) {
	r.stream.mu.Lock()
	delete(r.stream.running, r)
	r.stream.mu.Unlock()

	if err := r.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return nil, fmt.Errorf("interrupt encoder: %w", err)
	}
	err := r.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && r.out.Len() > 0) {
		return nil, fmt.Errorf("encoder: %w: %s", err, strings.TrimSpace(r.stderr.String()))
	}
	return r.out.Bytes(), nil
}
