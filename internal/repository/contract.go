package repository

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/idgen"
	"github.com/dastanaron/voicenotes/internal/models"
)

// Options are shared by both backends
type Options struct {
	IDs    idgen.Generator
	Clock  func() time.Time
	Logger *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.IDs == nil {
		o.IDs = idgen.NewTimeRandom()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// now strips the monotonic reading so stored and returned values compare equal
func (o Options) now() time.Time {
	return o.Clock().UTC().Round(0)
}

// touch returns a timestamp strictly after prev
func (o Options) touch(prev time.Time) time.Time {
	now := o.now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

func (o Options) newNote(title, content string, folderID *string) models.Note {
	now := o.now()
	n := models.Note{
		ID:        o.IDs.NewID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if folderID != nil && *folderID != "" {
		id := *folderID
		n.FolderID = &id
	}
	return n
}

func (o Options) newFolder(name, color string) (models.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return models.Folder{}, invalid("folder name is required")
	}
	if color == "" {
		color = models.DefaultFolderColor
	}
	id := models.DefaultFolderID
	if name != models.DefaultFolderName {
		id = o.IDs.NewID()
	}
	return models.Folder{ID: id, Name: name, Color: color, CreatedAt: o.now()}, nil
}

func checkUpdate(upd models.NoteUpdate) error {
	if upd.IsEmpty() {
		return invalid("no fields to update")
	}
	return nil
}

func checkDeletable(folderID string) error {
	if folderID == models.DefaultFolderID {
		return invalid("cannot delete default folder")
	}
	return nil
}

func errDefaultExists() error {
	return invalid("default folder already exists")
}

func blankQuery(query string) bool {
	return strings.TrimSpace(query) == ""
}

// filterByQuery keeps notes whose title or content contains query, ignoring case
func filterByQuery(notes []models.Note, query string) []models.Note {
	q := strings.ToLower(query)
	out := make([]models.Note, 0)
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content), q) {
			out = append(out, n)
		}
	}
	return out
}

func filterByFolder(notes []models.Note, folderID *string) []models.Note {
	if folderID == nil {
		return notes
	}
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if n.InFolder(*folderID) {
			out = append(out, n)
		}
	}
	return out
}

// sortNotes orders notes by UpdatedAt descending
func sortNotes(notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
}

// sortFolders orders folders by CreatedAt ascending
func sortFolders(folders []models.Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].CreatedAt.Before(folders[j].CreatedAt)
	})
}
