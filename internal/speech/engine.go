package speech

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// Options configure one listening session
type Options struct {
	Language       string
	PartialResults bool
	// Timeout is passed to the engine; enforcing it is up to the engine
	Timeout time.Duration
}

// DefaultOptions returns en-US with partial results and a 5s timeout
func DefaultOptions() Options {
	return Options{
		Language:       "en-US",
		PartialResults: true,
		Timeout:        5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	return o
}

// Sink receives the events of one session. Engines call it from their own
// goroutine, never from inside Start.
type Sink interface {
	Started()
	Result(text string, final bool)
	Failed(code, message string)
	Ended()
}

// Session is a running recognition
type Session interface {
	// Stop ends the session; the engine still reports Ended
	Stop()
	// Cancel ends the session and drops whatever is still in flight
	Cancel()
}

// Engine is a speech recognition backend
type Engine interface {
	Available(ctx context.Context) (bool, error)
	Start(ctx context.Context, opts Options, sink Sink) (Session, error)
}

// Error codes reported through OnError
const (
	CodeUnavailable = "unavailable"
	CodeStartFailed = "start_failed"
	CodeEngine      = "engine_error"
	CodeDestroyed   = "destroyed"
)

const defaultErrorMessage = "Speech recognition error"

type event struct {
	final   bool
	failed  bool
	text    string
	code    string
	message string
}

// parseLine reads one line of the recognizer protocol:
//
//	partial: some words
//	final: some words
//	error: code: message
//
// Any other non-blank line is a final result.
func parseLine(line string) (event, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return event{}, false
	}
	tag, rest, found := strings.Cut(line, ":")
	if !found {
		return event{final: true, text: strings.TrimSpace(line)}, true
	}
	rest = strings.TrimSpace(rest)
	switch strings.TrimSpace(tag) {
	case "partial":
		return event{text: rest}, true
	case "final":
		return event{final: true, text: rest}, true
	case "error":
		code, msg, ok := strings.Cut(rest, ":")
		if !ok {
			return event{failed: true, code: CodeEngine, message: rest}, true
		}
		return event{failed: true, code: strings.TrimSpace(code), message: strings.TrimSpace(msg)}, true
	default:
		return event{final: true, text: strings.TrimSpace(line)}, true
	}
}

// pump feeds protocol lines from r into sink until EOF or until stopped is set.
// It does not report Started or Ended.
func pump(r io.Reader, sink Sink, stopped *atomic.Bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if stopped.Load() {
			return nil
		}
		ev, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if ev.failed {
			sink.Failed(ev.code, ev.message)
			continue
		}
		if ev.text == "" {
			continue
		}
		sink.Result(ev.text, ev.final)
	}
	if stopped.Load() {
		return nil
	}
	return sc.Err()
}
