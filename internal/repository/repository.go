package repository

import (
	"context"

	"github.com/dastanaron/voicenotes/internal/models"
)

// NoteRepository defines operations for notes
type NoteRepository interface {
	Create(ctx context.Context, title, content string, folderID *string) (*models.Note, error)
	// List returns all notes, or only the notes of folderID when it is not nil,
	// most recently updated first.
	List(ctx context.Context, folderID *string) ([]models.Note, error)
	// GetByID returns nil without error when the note does not exist.
	GetByID(ctx context.Context, id string) (*models.Note, error)
	// Update merges upd onto the stored note and refreshes UpdatedAt.
	// Fails with ErrNotFound for an unknown id and ErrValidation for an empty update.
	Update(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error)
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, id string) error
	// Search matches query against title or content, ignoring case.
	// A blank query matches nothing.
	Search(ctx context.Context, query string) ([]models.Note, error)
}

// FolderRepository defines operations for folders
type FolderRepository interface {
	// Create stores a new folder. The name "Default" maps to the reserved
	// default folder id; an empty color falls back to the default color.
	Create(ctx context.Context, name, color string) (*models.Folder, error)
	// List returns folders oldest first.
	List(ctx context.Context) ([]models.Folder, error)
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	// Delete moves the folder's notes to the default folder and removes it.
	// The default folder cannot be deleted.
	Delete(ctx context.Context, id string) error
}

// Repository combines all repositories
type Repository interface {
	// Initialize makes sure the default folder exists. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	Notes() NoteRepository
	Folders() FolderRepository
	Close() error
}
