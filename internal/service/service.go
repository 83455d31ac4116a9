package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/repository"
)

// NoteService provides business logic for notes
type NoteService struct {
	repo repository.Repository
	log  zerolog.Logger
}

// NewNoteService creates a new note service
func NewNoteService(repo repository.Repository, log zerolog.Logger) *NoteService {
	return &NoteService{repo: repo, log: log.With().Str("component", "notes").Logger()}
}

// List returns all notes, or the notes of one folder
func (s *NoteService) List(ctx context.Context, folderID *string) ([]models.Note, error) {
	return s.repo.Notes().List(ctx, folderID)
}

// GetByID returns a note by ID, nil if absent
func (s *NoteService) GetByID(ctx context.Context, id string) (*models.Note, error) {
	return s.repo.Notes().GetByID(ctx, id)
}

// Create creates a new note as given
func (s *NoteService) Create(ctx context.Context, title, content string, folderID *string) (*models.Note, error) {
	n, err := s.repo.Notes().Create(ctx, title, content, folderID)
	if err != nil {
		s.log.Error().Err(err).Msg("create note")
		return nil, err
	}
	s.log.Debug().Str("note", n.ID).Msg("note created")
	return n, nil
}

// Update applies a partial update
func (s *NoteService) Update(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	n, err := s.repo.Notes().Update(ctx, id, upd)
	if err != nil {
		s.log.Error().Err(err).Str("note", id).Msg("update note")
		return nil, err
	}
	return n, nil
}

// Delete deletes a note by ID
func (s *NoteService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Notes().Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("note", id).Msg("delete note")
		return err
	}
	return nil
}

// Search filters notes by query string
func (s *NoteService) Search(ctx context.Context, query string) ([]models.Note, error) {
	return s.repo.Notes().Search(ctx, query)
}

// Save stores an editor draft. Title and content are trimmed; a draft with
// neither is rejected and a blank title becomes "Untitled Note". Drafts
// without an ID are created, others update title, content and folder.
func (s *NoteService) Save(ctx context.Context, d models.Draft) (*models.Note, error) {
	title := strings.TrimSpace(d.Title)
	content := strings.TrimSpace(d.Content)
	if title == "" && content == "" {
		return nil, fmt.Errorf("%w: add a title or content before saving", repository.ErrValidation)
	}
	if title == "" {
		title = models.UntitledNote
	}

	if d.ID == "" {
		return s.Create(ctx, title, content, d.FolderID)
	}

	folderID := ""
	if d.FolderID != nil {
		folderID = *d.FolderID
	}
	return s.Update(ctx, d.ID, models.NoteUpdate{
		Title:    &title,
		Content:  &content,
		FolderID: &folderID,
	})
}

// AppendText adds dictated text to the end of a note's content
func (s *NoteService) AppendText(ctx context.Context, id, text string) (*models.Note, error) {
	n, err := s.repo.Notes().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("note %q: %w", id, repository.ErrNotFound)
	}
	content := models.AppendSentence(n.Content, text)
	return s.Update(ctx, id, models.NoteUpdate{Content: &content})
}

// FolderService provides business logic for folders
type FolderService struct {
	repo repository.Repository
	log  zerolog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(repo repository.Repository, log zerolog.Logger) *FolderService {
	return &FolderService{repo: repo, log: log.With().Str("component", "folders").Logger()}
}

// ListAll returns all folders
func (s *FolderService) ListAll(ctx context.Context) ([]models.Folder, error) {
	return s.repo.Folders().List(ctx)
}

// GetByID returns a folder by ID
func (s *FolderService) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	return s.repo.Folders().GetByID(ctx, id)
}

// Create creates a new folder
func (s *FolderService) Create(ctx context.Context, name, color string) (*models.Folder, error) {
	f, err := s.repo.Folders().Create(ctx, strings.TrimSpace(name), color)
	if err != nil {
		s.log.Error().Err(err).Str("name", name).Msg("create folder")
		return nil, err
	}
	return f, nil
}

// Upsert returns the folder named name, creating it if none exists
func (s *FolderService) Upsert(ctx context.Context, name, color string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	folders, err := s.repo.Folders().List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range folders {
		if folders[i].Name == name {
			return &folders[i], nil
		}
	}
	return s.Create(ctx, name, color)
}

// Delete deletes a folder by ID, moving its notes to the default folder
func (s *FolderService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Folders().Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("folder", id).Msg("delete folder")
		return err
	}
	return nil
}
