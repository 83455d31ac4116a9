package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/service"
)

// ClearDoublesCommand handles removal of duplicate notes
type ClearDoublesCommand struct {
	noteSvc *service.NoteService
	out     io.Writer
	log     zerolog.Logger
}

// NewClearDoublesCommand creates a new clear doubles command
func NewClearDoublesCommand(repo repository.Repository, log zerolog.Logger) *ClearDoublesCommand {
	return &ClearDoublesCommand{
		noteSvc: service.NewNoteService(repo, log),
		out:     os.Stdout,
		log:     log,
	}
}

type noteKey struct {
	folder  string
	title   string
	content string
}

// Execute removes notes with the same folder, title and content, keeping
// the most recently updated one
func (c *ClearDoublesCommand) Execute(ctx context.Context) error {
	// most recently updated first, so the first note seen is kept
	allNotes, err := c.noteSvc.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get notes: %w", err)
	}

	seen := make(map[noteKey]string)
	var duplicates []string

	for _, n := range allNotes {
		key := noteKey{title: n.Title, content: n.Content}
		if n.FolderID != nil {
			key.folder = *n.FolderID
		}
		if keepID, exists := seen[key]; exists {
			duplicates = append(duplicates, n.ID)
			fmt.Fprintf(c.out, "Found duplicate: '%s' (ID: %s, keeping ID: %s)\n", n.Title, n.ID, keepID)
		} else {
			seen[key] = n.ID
		}
	}

	if len(duplicates) == 0 {
		fmt.Fprintln(c.out, "No duplicate notes found.")
		return nil
	}

	deleted := 0
	for _, id := range duplicates {
		if err := c.noteSvc.Delete(ctx, id); err != nil {
			fmt.Fprintf(c.out, "Warning: failed to delete note ID %s: %v\n", id, err)
			continue
		}
		deleted++
	}

	c.log.Info().Int("deleted", deleted).Msg("duplicates removed")
	fmt.Fprintf(c.out, "Deleted %d duplicate note(s).\n", deleted)
	return nil
}
