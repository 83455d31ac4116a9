// Package speech turns a recognition engine into a start/stop dictation
// lifecycle with single-slot callbacks.
package speech

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// State of the adapter
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Confidence reported with results. Engines give no score of their own.
const (
	PartialConfidence = 0.7
	FinalConfidence   = 0.9
)

// Adapter owns at most one recognition session at a time. Each callback
// slot holds one function; setting it again replaces the previous one.
// Callbacks run on the engine's goroutine, never inside the caller's call.
type Adapter struct {
	engine Engine
	log    zerolog.Logger

	mu        sync.Mutex
	state     State
	session   Session
	gen       uint64
	partial   bool
	destroyed bool

	onStart  func()
	onEnd    func()
	onResult func(text string, isFinal bool, confidence float64)
	onError  func(message, code string)
}

// NewAdapter creates an idle adapter over engine
func NewAdapter(engine Engine, log zerolog.Logger) *Adapter {
	return &Adapter{
		engine: engine,
		log:    log.With().Str("component", "speech").Logger(),
	}
}

// SetOnStart replaces the start callback
func (a *Adapter) SetOnStart(fn func()) {
	a.mu.Lock()
	a.onStart = fn
	a.mu.Unlock()
}

// SetOnEnd replaces the end callback
func (a *Adapter) SetOnEnd(fn func()) {
	a.mu.Lock()
	a.onEnd = fn
	a.mu.Unlock()
}

// SetOnResult replaces the result callback
func (a *Adapter) SetOnResult(fn func(text string, isFinal bool, confidence float64)) {
	a.mu.Lock()
	a.onResult = fn
	a.mu.Unlock()
}

// SetOnError replaces the error callback
func (a *Adapter) SetOnError(fn func(message, code string)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

// State returns the current state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsListening reports whether a session is running
func (a *Adapter) IsListening() bool {
	return a.State() == Listening
}

// IsAvailable probes the engine. Any failure reads as false.
func (a *Adapter) IsAvailable(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn().Interface("panic", r).Msg("availability probe panicked")
			ok = false
		}
	}()
	ok, err := a.engine.Available(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("speech engine unavailable")
		return false
	}
	return ok
}

// StartListening starts a session, stopping the running one first.
// It reports whether the session started; failures go to OnError.
func (a *Adapter) StartListening(ctx context.Context, opts Options) bool {
	opts = opts.withDefaults()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		a.errorLater("speech adapter destroyed", CodeDestroyed)
		return false
	}
	if a.state == Listening {
		a.stopLocked()
	}

	// events of earlier sessions are dropped from here on
	a.gen++
	a.partial = opts.PartialResults
	sess, err := a.engine.Start(ctx, opts, &sessionSink{a: a, gen: a.gen})
	if err != nil {
		a.log.Warn().Err(err).Str("language", opts.Language).Msg("start listening")
		a.errorLater(fmt.Sprintf("Failed to start speech recognition: %v", err), CodeStartFailed)
		return false
	}

	a.session = sess
	a.state = Listening
	a.log.Debug().Str("language", opts.Language).Bool("partial", opts.PartialResults).Msg("listening")
	return true
}

// StopListening ends the session. Results already produced and OnEnd are
// still delivered.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	a.stopLocked()
	a.mu.Unlock()
}

// CancelListening ends the session and drops every event still pending,
// including OnEnd.
func (a *Adapter) CancelListening() {
	a.mu.Lock()
	a.cancelLocked()
	a.mu.Unlock()
}

// Destroy cancels any session and clears all callbacks. The adapter cannot
// be started again.
func (a *Adapter) Destroy() {
	a.mu.Lock()
	a.cancelLocked()
	a.destroyed = true
	a.onStart, a.onEnd, a.onResult, a.onError = nil, nil, nil, nil
	a.mu.Unlock()
}

func (a *Adapter) stopLocked() {
	if a.session != nil {
		a.session.Stop()
		a.session = nil
	}
	a.state = Idle
}

func (a *Adapter) cancelLocked() {
	if a.session != nil {
		a.session.Cancel()
		a.session = nil
	}
	a.gen++
	a.state = Idle
}

func (a *Adapter) errorLater(message, code string) {
	if fn := a.onError; fn != nil {
		go fn(message, code)
	}
}

// sessionSink routes engine events of one session back into the adapter
type sessionSink struct {
	a   *Adapter
	gen uint64
}

func (s *sessionSink) Started() {
	a := s.a
	a.mu.Lock()
	if s.gen != a.gen {
		a.mu.Unlock()
		return
	}
	fn := a.onStart
	a.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *sessionSink) Result(text string, final bool) {
	a := s.a
	a.mu.Lock()
	if s.gen != a.gen || (!final && !a.partial) {
		a.mu.Unlock()
		return
	}
	fn := a.onResult
	a.mu.Unlock()

	confidence := PartialConfidence
	if final {
		confidence = FinalConfidence
	}
	if fn != nil {
		fn(text, final, confidence)
	}
}

func (s *sessionSink) Failed(code, message string) {
	a := s.a
	a.mu.Lock()
	if s.gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.stopLocked()
	fn := a.onError
	a.mu.Unlock()

	if message == "" {
		message = defaultErrorMessage
	}
	a.log.Warn().Str("code", code).Str("error", message).Msg("recognition failed")
	if fn != nil {
		fn(message, code)
	}
}

func (s *sessionSink) Ended() {
	a := s.a
	a.mu.Lock()
	if s.gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.session = nil
	a.state = Idle
	fn := a.onEnd
	a.mu.Unlock()

	if fn != nil {
		fn()
	}
}
