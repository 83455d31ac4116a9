// Package state holds the cached notes and folders the UI renders from.
//
// Every operation runs in three phases: mark the entity kind as loading and
// clear its error, call the service, then either fold the result into the
// cache or record the error message. Errors stay until acknowledged with
// ClearNotesError or ClearFoldersError.
package state

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/service"
)

// NotesState is the cached note collection
type NotesState struct {
	Notes   []models.Note
	Loading bool
	Error   string
}

// FoldersState is the cached folder collection
type FoldersState struct {
	Folders []models.Folder
	Loading bool
	Error   string
}

// Snapshot is a copy of the whole store
type Snapshot struct {
	Notes   NotesState
	Folders FoldersState
}

type kind int

const (
	kindNotes kind = iota
	kindFolders
)

// Store mediates between the UI and the services
type Store struct {
	notes   *service.NoteService
	folders *service.FolderService
	log     zerolog.Logger

	mu      sync.Mutex
	state   Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewStore creates an empty store
func NewStore(notes *service.NoteService, folders *service.FolderService, log zerolog.Logger) *Store {
	return &Store{
		notes:   notes,
		folders: folders,
		log:     log.With().Str("component", "state").Logger(),
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	snap := s.state
	snap.Notes.Notes = append([]models.Note(nil), s.state.Notes.Notes...)
	snap.Folders.Folders = append([]models.Folder(nil), s.state.Folders.Folders...)
	return snap
}

// Subscribe registers fn to be called with a snapshot after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update mutates the state under the lock and notifies subscribers outside it
func (s *Store) update(fn func(st *Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.copyLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (s *Store) begin(k kind) {
	s.update(func(st *Snapshot) {
		switch k {
		case kindNotes:
			st.Notes.Loading = true
			st.Notes.Error = ""
		case kindFolders:
			st.Folders.Loading = true
			st.Folders.Error = ""
		}
	})
}

func (s *Store) fail(k kind, err error, fallback string) error {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	s.log.Warn().Err(err).Msg(fallback)
	s.update(func(st *Snapshot) {
		switch k {
		case kindNotes:
			st.Notes.Loading = false
			st.Notes.Error = msg
		case kindFolders:
			st.Folders.Loading = false
			st.Folders.Error = msg
		}
	})
	return err
}

// FetchNotes replaces the cached notes with all notes, or one folder's notes
func (s *Store) FetchNotes(ctx context.Context, folderID *string) error {
	s.begin(kindNotes)
	notes, err := s.notes.List(ctx, folderID)
	if err != nil {
		return s.fail(kindNotes, err, "Failed to fetch notes")
	}
	s.update(func(st *Snapshot) {
		st.Notes.Loading = false
		st.Notes.Notes = notes
	})
	return nil
}

// CreateNote stores a new note and puts it at the front of the cache
func (s *Store) CreateNote(ctx context.Context, title, content string, folderID *string) (*models.Note, error) {
	s.begin(kindNotes)
	n, err := s.notes.Create(ctx, title, content, folderID)
	if err != nil {
		return nil, s.fail(kindNotes, err, "Failed to create note")
	}
	s.prepend(n)
	return n, nil
}

// SaveNote stores an editor draft, creating or updating as needed
func (s *Store) SaveNote(ctx context.Context, d models.Draft) (*models.Note, error) {
	s.begin(kindNotes)
	n, err := s.notes.Save(ctx, d)
	if err != nil {
		return nil, s.fail(kindNotes, err, "Failed to save note")
	}
	if d.ID == "" {
		s.prepend(n)
	} else {
		s.moveToFront(n)
	}
	return n, nil
}

// UpdateNote applies a partial update; the note moves to the front of the cache
func (s *Store) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	s.begin(kindNotes)
	n, err := s.notes.Update(ctx, id, upd)
	if err != nil {
		return nil, s.fail(kindNotes, err, "Failed to update note")
	}
	s.moveToFront(n)
	return n, nil
}

// AppendToNote adds dictated text to a note's content
func (s *Store) AppendToNote(ctx context.Context, id, text string) (*models.Note, error) {
	s.begin(kindNotes)
	n, err := s.notes.AppendText(ctx, id, text)
	if err != nil {
		return nil, s.fail(kindNotes, err, "Failed to update note")
	}
	s.moveToFront(n)
	return n, nil
}

// DeleteNote removes a note from storage and from the cache
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	s.begin(kindNotes)
	if err := s.notes.Delete(ctx, id); err != nil {
		return s.fail(kindNotes, err, "Failed to delete note")
	}
	s.update(func(st *Snapshot) {
		st.Notes.Loading = false
		st.Notes.Notes = removeNote(st.Notes.Notes, id)
	})
	return nil
}

// SearchNotes replaces the cached notes with the search results
func (s *Store) SearchNotes(ctx context.Context, query string) error {
	s.begin(kindNotes)
	notes, err := s.notes.Search(ctx, query)
	if err != nil {
		return s.fail(kindNotes, err, "Failed to search notes")
	}
	s.update(func(st *Snapshot) {
		st.Notes.Loading = false
		st.Notes.Notes = notes
	})
	return nil
}

// SetNotes replaces the cached notes without touching storage
func (s *Store) SetNotes(notes []models.Note) {
	s.update(func(st *Snapshot) {
		st.Notes.Notes = append([]models.Note(nil), notes...)
	})
}

// ClearNotesError acknowledges the last notes error
func (s *Store) ClearNotesError() {
	s.update(func(st *Snapshot) { st.Notes.Error = "" })
}

// FetchFolders replaces the cached folders
func (s *Store) FetchFolders(ctx context.Context) error {
	s.begin(kindFolders)
	folders, err := s.folders.ListAll(ctx)
	if err != nil {
		return s.fail(kindFolders, err, "Failed to fetch folders")
	}
	s.update(func(st *Snapshot) {
		st.Folders.Loading = false
		st.Folders.Folders = folders
	})
	return nil
}

// CreateFolder stores a folder and appends it to the cache
func (s *Store) CreateFolder(ctx context.Context, name, color string) (*models.Folder, error) {
	s.begin(kindFolders)
	f, err := s.folders.Create(ctx, name, color)
	if err != nil {
		return nil, s.fail(kindFolders, err, "Failed to create folder")
	}
	s.update(func(st *Snapshot) {
		st.Folders.Loading = false
		st.Folders.Folders = append(st.Folders.Folders, *f)
	})
	return f, nil
}

// DeleteFolder removes a folder. Cached notes of that folder are shown in
// the default folder, matching what storage now holds.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	s.begin(kindFolders)
	if err := s.folders.Delete(ctx, id); err != nil {
		return s.fail(kindFolders, err, "Failed to delete folder")
	}
	s.update(func(st *Snapshot) {
		st.Folders.Loading = false
		kept := make([]models.Folder, 0, len(st.Folders.Folders))
		for _, f := range st.Folders.Folders {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		st.Folders.Folders = kept

		notes := make([]models.Note, len(st.Notes.Notes))
		copy(notes, st.Notes.Notes)
		for i := range notes {
			if notes[i].InFolder(id) {
				notes[i].FolderID = models.StringPtr(models.DefaultFolderID)
			}
		}
		st.Notes.Notes = notes
	})
	return nil
}

// ClearFoldersError acknowledges the last folders error
func (s *Store) ClearFoldersError() {
	s.update(func(st *Snapshot) { st.Folders.Error = "" })
}

func (s *Store) prepend(n *models.Note) {
	s.update(func(st *Snapshot) {
		st.Notes.Loading = false
		st.Notes.Notes = append([]models.Note{*n}, st.Notes.Notes...)
	})
}

// moveToFront replaces the cached copy of n and moves it first.
// Notes missing from the cache are left out, as the cache may be filtered.
func (s *Store) moveToFront(n *models.Note) {
	s.update(func(st *Snapshot) {
		st.Notes.Loading = false
		for i := range st.Notes.Notes {
			if st.Notes.Notes[i].ID == n.ID {
				rest := removeNote(st.Notes.Notes, n.ID)
				st.Notes.Notes = append([]models.Note{*n}, rest...)
				return
			}
		}
	})
}

func removeNote(notes []models.Note, id string) []models.Note {
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
