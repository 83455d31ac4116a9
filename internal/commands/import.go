package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/parser"
	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/service"
)

// ImportCommand handles note import from an HTML archive
type ImportCommand struct {
	noteSvc *service.NoteService
	parser  *parser.Parser
	out     io.Writer
	log     zerolog.Logger
}

// NewImportCommand creates a new import command
func NewImportCommand(repo repository.Repository, log zerolog.Logger) *ImportCommand {
	folderSvc := service.NewFolderService(repo, log)
	return &ImportCommand{
		noteSvc: service.NewNoteService(repo, log),
		parser:  parser.NewParser(folderSvc),
		out:     os.Stdout,
		log:     log,
	}
}

// Execute imports notes from the archive at filePath
func (c *ImportCommand) Execute(ctx context.Context, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	notes, err := c.parser.ParseNotesHTML(ctx, file)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	imported := 0
	for _, n := range notes {
		if _, err := c.noteSvc.Create(ctx, n.Title, n.Content, n.FolderID); err != nil {
			fmt.Fprintf(c.out, "Warning: failed to import note '%s': %v\n", n.Title, err)
			continue
		}
		imported++
	}

	c.log.Info().Int("notes", imported).Str("file", filePath).Msg("import finished")
	fmt.Fprintf(c.out, "Imported %d notes.\n", imported)
	return nil
}
