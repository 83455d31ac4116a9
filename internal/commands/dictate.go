package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/service"
	"github.com/dastanaron/voicenotes/internal/speech"
)

// ErrSpeechUnavailable is returned when the recognizer cannot be used
var ErrSpeechUnavailable = errors.New("speech recognition is not available")

// DictateCommand appends spoken text to an existing note
type DictateCommand struct {
	noteSvc    *service.NoteService
	adapter    *speech.Adapter
	permission speech.Permission
	opts       speech.Options
	out        io.Writer
	log        zerolog.Logger
}

// NewDictateCommand creates a dictation command over the given engine
func NewDictateCommand(repo repository.Repository, engine speech.Engine, permission speech.Permission, opts speech.Options, log zerolog.Logger) *DictateCommand {
	return &DictateCommand{
		noteSvc:    service.NewNoteService(repo, log),
		adapter:    speech.NewAdapter(engine, log),
		permission: permission,
		opts:       opts,
		out:        os.Stdout,
		log:        log,
	}
}

// Execute listens until the engine ends and saves every final result into
// the note. Partial results are only printed.
func (c *DictateCommand) Execute(ctx context.Context, noteID string) error {
	note, err := c.noteSvc.GetByID(ctx, noteID)
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}
	if note == nil {
		return fmt.Errorf("note %q: %w", noteID, repository.ErrNotFound)
	}

	if err := speech.Require(ctx, c.permission); err != nil {
		return err
	}
	if !c.adapter.IsAvailable(ctx) {
		return ErrSpeechUnavailable
	}
	defer c.adapter.Destroy()

	transcript := speech.NewTranscript(note.Content)
	type heard struct {
		text  string
		final bool
	}
	results := make(chan heard)
	failures := make(chan string, 1)
	done := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)

	c.adapter.SetOnResult(func(text string, isFinal bool, _ float64) {
		select {
		case results <- heard{text: text, final: isFinal}:
		case <-quit:
		}
	})
	c.adapter.SetOnError(func(message, code string) {
		select {
		case failures <- fmt.Sprintf("%s (%s)", message, code):
		default:
		}
	})
	c.adapter.SetOnEnd(func() { close(done) })

	if !c.adapter.StartListening(ctx, c.opts) {
		select {
		case msg := <-failures:
			return fmt.Errorf("dictation: %s", msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	saved := 0
	for {
		select {
		case r := <-results:
			if !transcript.Apply(r.text, r.final) {
				if !r.final {
					fmt.Fprintf(c.out, "... %s\n", transcript.Partial())
				}
				continue
			}
			if _, err := c.noteSvc.AppendText(ctx, noteID, r.text); err != nil {
				c.adapter.CancelListening()
				return fmt.Errorf("failed to save dictation: %w", err)
			}
			saved++
			fmt.Fprintf(c.out, "+ %s\n", r.text)
		case <-done:
			transcript.Reset()
			fmt.Fprintf(c.out, "Saved %d dictated sentence(s) to '%s'.\n", saved, note.Title)
			select {
			case msg := <-failures:
				return fmt.Errorf("dictation: %s", msg)
			default:
			}
			return nil
		case <-ctx.Done():
			c.adapter.CancelListening()
			return ctx.Err()
		}
	}
}
