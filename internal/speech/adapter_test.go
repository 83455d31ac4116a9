package speech

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	stopped   atomic.Bool
	cancelled atomic.Bool
}

func (s *fakeSession) Stop()   { s.stopped.Store(true) }
func (s *fakeSession) Cancel() { s.cancelled.Store(true) }

type fakeEngine struct {
	available  bool
	probeErr   error
	probePanic bool
	startErr   error

	sinks    []Sink
	sessions []*fakeSession
	opts     []Options
}

func (e *fakeEngine) Available(context.Context) (bool, error) {
	if e.probePanic {
		panic("no audio stack")
	}
	return e.available, e.probeErr
}

func (e *fakeEngine) Start(_ context.Context, opts Options, sink Sink) (Session, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	s := &fakeSession{}
	e.sinks = append(e.sinks, sink)
	e.sessions = append(e.sessions, s)
	e.opts = append(e.opts, opts)
	return s, nil
}

type result struct {
	text       string
	final      bool
	confidence float64
}

// recorder collects callbacks; done is closed on OnEnd
type recorder struct {
	mu      sync.Mutex
	started int
	ended   int
	results []result
	errors  [][2]string
	done    chan struct{}
}

func record(a *Adapter) *recorder {
	r := &recorder{done: make(chan struct{})}
	a.SetOnStart(func() {
		r.mu.Lock()
		r.started++
		r.mu.Unlock()
	})
	a.SetOnEnd(func() {
		r.mu.Lock()
		r.ended++
		if r.ended == 1 {
			close(r.done)
		}
		r.mu.Unlock()
	})
	a.SetOnResult(func(text string, isFinal bool, confidence float64) {
		r.mu.Lock()
		r.results = append(r.results, result{text, isFinal, confidence})
		r.mu.Unlock()
	})
	a.SetOnError(func(message, code string) {
		r.mu.Lock()
		r.errors = append(r.errors, [2]string{message, code})
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)

	require.Equal(t, Idle, a.State())
	require.True(t, a.StartListening(ctx, Options{PartialResults: true}))
	require.True(t, a.IsListening())

	require.Len(t, engine.opts, 1)
	require.Equal(t, "en-US", engine.opts[0].Language)
	require.Equal(t, 5*time.Second, engine.opts[0].Timeout)

	sink := engine.sinks[0]
	sink.Started()
	sink.Result("hel", false)
	sink.Result("hello", true)
	require.Equal(t, 1, rec.started)
	require.Equal(t, []result{
		{"hel", false, PartialConfidence},
		{"hello", true, FinalConfidence},
	}, rec.results)

	a.StopListening()
	require.Equal(t, Idle, a.State())
	require.True(t, engine.sessions[0].stopped.Load())

	// the engine still reports the end of a stopped session
	sink.Ended()
	require.Equal(t, 1, rec.ended)
}

func TestAdapter_PartialResultsDisabled(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), Options{Language: "de-DE"}))
	require.Equal(t, "de-DE", engine.opts[0].Language)

	engine.sinks[0].Result("ignored", false)
	engine.sinks[0].Result("kept", true)
	require.Equal(t, []result{{"kept", true, FinalConfidence}}, rec.results)
}

func TestAdapter_RestartStopsPreviousSession(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)
	ctx := context.Background()

	require.True(t, a.StartListening(ctx, DefaultOptions()))
	require.True(t, a.StartListening(ctx, DefaultOptions()))
	require.True(t, engine.sessions[0].stopped.Load())
	require.True(t, a.IsListening())

	old, current := engine.sinks[0], engine.sinks[1]
	old.Result("stale", true)
	old.Ended()
	require.Empty(t, rec.results)
	require.Zero(t, rec.ended)
	require.True(t, a.IsListening())

	current.Result("fresh", true)
	require.Len(t, rec.results, 1)
}

func TestAdapter_CancelDropsPendingEvents(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	a.CancelListening()
	require.True(t, engine.sessions[0].cancelled.Load())
	require.False(t, a.IsListening())

	engine.sinks[0].Result("late", true)
	engine.sinks[0].Ended()
	require.Empty(t, rec.results)
	require.Zero(t, rec.ended)
}

func TestAdapter_LastCallbackWins(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())

	var first, second int
	a.SetOnResult(func(string, bool, float64) { first++ })
	a.SetOnResult(func(string, bool, float64) { second++ })

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	engine.sinks[0].Result("x", true)
	require.Zero(t, first)
	require.Equal(t, 1, second)
}

func TestAdapter_EngineError(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	engine.sinks[0].Failed("network", "")
	require.False(t, a.IsListening())
	require.True(t, engine.sessions[0].stopped.Load())
	require.Equal(t, [][2]string{{defaultErrorMessage, "network"}}, rec.errors)
}

func TestAdapter_StartFailure(t *testing.T) {
	engine := &fakeEngine{startErr: errors.New("device busy")}
	a := NewAdapter(engine, zerolog.Nop())

	got := make(chan [2]string, 1)
	a.SetOnError(func(message, code string) { got <- [2]string{message, code} })

	require.False(t, a.StartListening(context.Background(), DefaultOptions()))
	require.False(t, a.IsListening())

	select {
	case e := <-got:
		require.Contains(t, e[0], "device busy")
		require.Equal(t, CodeStartFailed, e[1])
	case <-time.After(5 * time.Second):
		t.Fatal("no error callback")
	}
}

func TestAdapter_IsAvailable(t *testing.T) {
	ctx := context.Background()
	require.True(t, NewAdapter(&fakeEngine{available: true}, zerolog.Nop()).IsAvailable(ctx))
	require.False(t, NewAdapter(&fakeEngine{available: true, probeErr: errors.New("x")}, zerolog.Nop()).IsAvailable(ctx))
	require.False(t, NewAdapter(&fakeEngine{probePanic: true}, zerolog.Nop()).IsAvailable(ctx))
}

func TestAdapter_Destroy(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	a.Destroy()
	require.True(t, engine.sessions[0].cancelled.Load())
	require.False(t, a.StartListening(context.Background(), DefaultOptions()))
	require.Len(t, engine.sessions, 1)

	engine.sinks[0].Result("late", true)
	require.Empty(t, rec.results)
}

func readerEngine(input string) *LineEngine {
	return NewLineEngine(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(input)), nil
	})
}

func TestLineEngine_Session(t *testing.T) {
	a := NewAdapter(readerEngine("partial: hel\nfinal: hello\n\nbare words\r\n"), zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 1, rec.started)
	require.Equal(t, []result{
		{"hel", false, PartialConfidence},
		{"hello", true, FinalConfidence},
		{"bare words", true, FinalConfidence},
	}, rec.results)
	require.Empty(t, rec.errors)
	require.False(t, a.IsListening())
}

func TestLineEngine_ErrorEndsSession(t *testing.T) {
	a := NewAdapter(readerEngine("final: a\nerror: network: offline\nfinal: b\n"), zerolog.Nop())
	rec := record(a)

	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []result{{"a", true, FinalConfidence}}, rec.results)
	require.Equal(t, [][2]string{{"offline", "network"}}, rec.errors)
}

func TestLineEngine_CallbacksOutsideCaller(t *testing.T) {
	a := NewAdapter(readerEngine("final: x\n"), zerolog.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	a.SetOnStart(func() {
		<-release
		close(started)
	})

	// a synchronous callback would block StartListening forever
	require.True(t, a.StartListening(context.Background(), DefaultOptions()))
	close(release)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("start callback not delivered")
	}
}

func TestFileEngine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transcript.txt")

	missing := NewAdapter(NewFileEngine(path), zerolog.Nop())
	require.False(t, missing.IsAvailable(ctx))

	require.NoError(t, os.WriteFile(path, []byte("final: from file\n"), 0o644))
	a := NewAdapter(NewFileEngine(path), zerolog.Nop())
	require.True(t, a.IsAvailable(ctx))

	rec := record(a)
	require.True(t, a.StartListening(ctx, DefaultOptions()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []result{{"from file", true, FinalConfidence}}, rec.results)
}

func TestCommandEngine(t *testing.T) {
	ctx := context.Background()

	require.False(t, NewAdapter(NewCommandEngine(nil), zerolog.Nop()).IsAvailable(ctx))
	require.False(t, NewAdapter(NewCommandEngine([]string{"voicenotes-no-such-recognizer"}), zerolog.Nop()).IsAvailable(ctx))

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := `echo "partial: one"; echo "final: one two"; echo "$VOICENOTES_SPEECH_LANGUAGE"`
	a := NewAdapter(NewCommandEngine([]string{"sh", "-c", script}), zerolog.Nop())
	require.True(t, a.IsAvailable(ctx))

	rec := record(a)
	opts := DefaultOptions()
	opts.Language = "de-DE"
	require.True(t, a.StartListening(ctx, opts))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []result{
		{"one", false, PartialConfidence},
		{"one two", true, FinalConfidence},
		{"de-DE", true, FinalConfidence},
	}, rec.results)
	require.Empty(t, rec.errors)
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want event
		ok   bool
	}{
		{"partial: so far", event{text: "so far"}, true},
		{"final:done", event{final: true, text: "done"}, true},
		{"error: no-match: nothing heard", event{failed: true, code: "no-match", message: "nothing heard"}, true},
		{"error: broken", event{failed: true, code: CodeEngine, message: "broken"}, true},
		{"time: 10:30", event{final: true, text: "time: 10:30"}, true},
		{"plain", event{final: true, text: "plain"}, true},
		{"   ", event{}, false},
	}
	for _, c := range cases {
		got, ok := parseLine(c.line)
		require.Equal(t, c.ok, ok, c.line)
		require.Equal(t, c.want, got, c.line)
	}
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Require(ctx, AlwaysGranted))
	require.NoError(t, Require(ctx, nil))

	denied := PermissionFunc(func(context.Context) (bool, error) { return false, nil })
	require.ErrorIs(t, Require(ctx, denied), ErrPermissionDenied)

	boom := errors.New("prompt failed")
	failing := PermissionFunc(func(context.Context) (bool, error) { return false, boom })
	require.ErrorIs(t, Require(ctx, failing), boom)
}

func TestTranscript(t *testing.T) {
	tr := NewTranscript("Shopping:")

	require.False(t, tr.Apply("milk", false))
	require.Equal(t, "Shopping:", tr.Content())
	require.Equal(t, "Shopping: milk", tr.Preview())

	require.True(t, tr.Apply("milk and eggs", true))
	require.Equal(t, "Shopping: milk and eggs", tr.Content())
	require.Empty(t, tr.Partial())

	tr.Apply("bre", false)
	tr.Reset()
	require.Equal(t, tr.Content(), tr.Preview())

	require.False(t, tr.Apply("  ", true))
}
