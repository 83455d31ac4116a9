package commands

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/service"
)

// ExportCommand handles note export to an HTML archive
type ExportCommand struct {
	noteSvc   *service.NoteService
	folderSvc *service.FolderService
	out       io.Writer
	log       zerolog.Logger
}

// NewExportCommand creates a new export command
func NewExportCommand(repo repository.Repository, log zerolog.Logger) *ExportCommand {
	return &ExportCommand{
		noteSvc:   service.NewNoteService(repo, log),
		folderSvc: service.NewFolderService(repo, log),
		out:       os.Stdout,
		log:       log,
	}
}

// Execute exports every folder and note to filePath
func (c *ExportCommand) Execute(ctx context.Context, filePath string) error {
	folders, err := c.folderSvc.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get folders: %w", err)
	}

	notes, err := c.noteSvc.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get notes: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	writeArchive(w, folders, notes)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", filePath, err)
	}

	c.log.Info().Int("notes", len(notes)).Str("file", filePath).Msg("export finished")
	fmt.Fprintf(c.out, "Exported %d notes to %s\n", len(notes), filePath)
	return nil
}

// writeArchive writes folders in list order. Notes go oldest first, so an
// import recreates the same most-recent-first listing. Notes without a
// known folder land in the unfiled section.
func writeArchive(w io.Writer, folders []models.Folder, notes []models.Note) {
	known := make(map[string]bool, len(folders))
	for _, f := range folders {
		known[f.ID] = true
	}

	byFolder := make(map[string][]models.Note)
	var unfiled []models.Note
	for _, n := range notes {
		if n.FolderID != nil && known[*n.FolderID] {
			byFolder[*n.FolderID] = append(byFolder[*n.FolderID], n)
		} else {
			unfiled = append(unfiled, n)
		}
	}

	fmt.Fprintf(w, "<!DOCTYPE html>\n")
	fmt.Fprintf(w, "<html><head><meta charset=\"utf-8\"><title>VoiceNotes</title></head>\n")
	fmt.Fprintf(w, "<body>\n<h1>VoiceNotes</h1>\n")

	for _, f := range folders {
		fmt.Fprintf(w, "<section data-id=\"%s\" data-color=\"%s\">\n", html.EscapeString(f.ID), html.EscapeString(f.Color))
		fmt.Fprintf(w, "<h2>%s</h2>\n", html.EscapeString(f.Name))
		writeNotes(w, byFolder[f.ID])
		fmt.Fprintf(w, "</section>\n")
	}

	if len(unfiled) > 0 {
		fmt.Fprintf(w, "<section>\n<h2>Unfiled</h2>\n")
		writeNotes(w, unfiled)
		fmt.Fprintf(w, "</section>\n")
	}

	fmt.Fprintf(w, "</body></html>\n")
}

func writeNotes(w io.Writer, notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.Before(notes[j].UpdatedAt)
	})
	for _, n := range notes {
		// the leading newline inside <pre> is dropped again by HTML parsers
		fmt.Fprintf(w, "<article><h3>%s</h3><pre>\n%s</pre></article>\n",
			html.EscapeString(n.Title), html.EscapeString(n.Content))
	}
}
