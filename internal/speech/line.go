package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// LineEngine reads recognizer protocol lines from a stream, such as a
// transcript file. End of input ends the session.
type LineEngine struct {
	open  func(ctx context.Context) (io.ReadCloser, error)
	probe func(ctx context.Context) (bool, error)
}

// NewLineEngine creates an engine over the streams returned by open
func NewLineEngine(open func(ctx context.Context) (io.ReadCloser, error)) *LineEngine {
	return &LineEngine{open: open}
}

// NewFileEngine creates an engine reading the transcript file at path
func NewFileEngine(path string) *LineEngine {
	return &LineEngine{
		open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
		probe: func(context.Context) (bool, error) {
			st, err := os.Stat(path)
			if err != nil {
				return false, err
			}
			return st.Mode().IsRegular(), nil
		},
	}
}

// Available reports whether the input can be opened
func (e *LineEngine) Available(ctx context.Context) (bool, error) {
	if e.probe == nil {
		return e.open != nil, nil
	}
	return e.probe(ctx)
}

// Start opens the input and streams it to sink
func (e *LineEngine) Start(ctx context.Context, _ Options, sink Sink) (Session, error) {
	if e.open == nil {
		return nil, errors.New("line engine has no input")
	}
	rc, err := e.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	s := &streamSession{closer: rc}
	go func() {
		sink.Started()
		if err := pump(rc, sink, &s.stopped); err != nil {
			sink.Failed(CodeEngine, err.Error())
		}
		s.close()
		sink.Ended()
	}()
	return s, nil
}

type streamSession struct {
	stopped atomic.Bool
	closer  io.Closer
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *streamSession) close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.closer != nil {
			s.closer.Close()
		}
	})
}

func (s *streamSession) Stop() {
	s.stopped.Store(true)
	s.close()
}

func (s *streamSession) Cancel() {
	s.Stop()
}

// CommandEngine runs an external recognizer and reads protocol lines from
// its stdout. Session options are passed in VOICENOTES_SPEECH_* variables.
type CommandEngine struct {
	command []string
}

// NewCommandEngine creates an engine running command
func NewCommandEngine(command []string) *CommandEngine {
	return &CommandEngine{command: command}
}

// Available reports whether the recognizer binary can be found
func (e *CommandEngine) Available(context.Context) (bool, error) {
	if len(e.command) == 0 {
		return false, nil
	}
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return false, err
	}
	return true, nil
}

// Start launches the recognizer
func (e *CommandEngine) Start(ctx context.Context, opts Options, sink Sink) (Session, error) {
	if len(e.command) == 0 {
		return nil, errors.New("no recognizer command configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, e.command[0], e.command[1:]...)
	cmd.Env = append(os.Environ(),
		"VOICENOTES_SPEECH_LANGUAGE="+opts.Language,
		"VOICENOTES_SPEECH_PARTIAL_RESULTS="+strconv.FormatBool(opts.PartialResults),
		"VOICENOTES_SPEECH_TIMEOUT="+opts.Timeout.String(),
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", e.command[0], err)
	}

	s := &streamSession{cancel: cancel}
	go func() {
		sink.Started()
		perr := pump(stdout, sink, &s.stopped)
		werr := cmd.Wait()
		if !s.stopped.Load() {
			if perr != nil {
				sink.Failed(CodeEngine, perr.Error())
			} else if werr != nil {
				sink.Failed(CodeEngine, fmt.Sprintf("%s: %v", e.command[0], werr))
			}
		}
		s.close()
		sink.Ended()
	}()
	return s, nil
}
