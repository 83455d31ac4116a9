package repository

import (
	"context"
	"sync"

	"github.com/dastanaron/voicenotes/internal/models"
)

const (
	NotesKey   = "voicenotes_notes"
	FoldersKey = "voicenotes_folders"
)

// KVRepository implements Repository over a key-value Storage, keeping each
// collection as one serialized blob that is read and written wholesale.
//
// Every read-modify-write holds mu. Folder deletion writes the notes blob
// before the folders blob, so a failure between the two leaves the folder in
// place with no notes pointing at it.
type KVRepository struct {
	mu      sync.Mutex
	storage Storage
	codec   Codec
	opts    Options
	notes   *kvNoteRepo
	folders *kvFolderRepo
}

// NewKVRepository creates a repository over storage using codec for blobs
func NewKVRepository(storage Storage, codec Codec, opts Options) *KVRepository {
	r := &KVRepository{
		storage: storage,
		codec:   codec,
		opts:    opts.withDefaults(),
	}
	r.notes = &kvNoteRepo{r}
	r.folders = &kvFolderRepo{r}
	return r
}

// Initialize creates the default folder if it is missing
func (r *KVRepository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	folders, err := r.loadFolders(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.IsDefault() {
			return nil
		}
	}
	if _, err := r.folders.create(ctx, folders, models.DefaultFolderName, models.DefaultFolderColor); err != nil {
		return err
	}
	r.opts.Logger.Info().Str("backend", "kv").Str("codec", r.codec.Name()).Msg("default folder created")
	return nil
}

func (r *KVRepository) Notes() NoteRepository {
	return r.notes
}

func (r *KVRepository) Folders() FolderRepository {
	return r.folders
}

// Close has nothing to release
func (r *KVRepository) Close() error {
	return nil
}

func (r *KVRepository) loadNotes(ctx context.Context) ([]models.Note, error) {
	notes := make([]models.Note, 0)
	if err := r.load(ctx, NotesKey, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *KVRepository) loadFolders(ctx context.Context) ([]models.Folder, error) {
	folders := make([]models.Folder, 0)
	if err := r.load(ctx, FoldersKey, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *KVRepository) load(ctx context.Context, key string, v any) error {
	data, err := r.storage.GetItem(ctx, key)
	if err != nil {
		return storageErr("read "+key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := r.codec.Unmarshal(data, v); err != nil {
		return storageErr("decode "+key, err)
	}
	return nil
}

func (r *KVRepository) save(ctx context.Context, key string, v any) error {
	data, err := r.codec.Marshal(v)
	if err != nil {
		return storageErr("encode "+key, err)
	}
	return storageErr("write "+key, r.storage.SetItem(ctx, key, data))
}

// kvNoteRepo implements NoteRepository
type kvNoteRepo struct {
	r *KVRepository
}

func (n *kvNoteRepo) Create(ctx context.Context, title, content string, folderID *string) (*models.Note, error) {
	n.r.mu.Lock()
	defer n.r.mu.Unlock()

	notes, err := n.r.loadNotes(ctx)
	if err != nil {
		return nil, err
	}
	note := n.r.opts.newNote(title, content, folderID)
	notes = append([]models.Note{note}, notes...)
	if err := n.r.save(ctx, NotesKey, notes); err != nil {
		return nil, err
	}
	return &note, nil
}

func (n *kvNoteRepo) List(ctx context.Context, folderID *string) ([]models.Note, error) {
	n.r.mu.Lock()
	notes, err := n.r.loadNotes(ctx)
	n.r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	notes = filterByFolder(notes, folderID)
	sortNotes(notes)
	return notes, nil
}

func (n *kvNoteRepo) GetByID(ctx context.Context, id string) (*models.Note, error) {
	n.r.mu.Lock()
	notes, err := n.r.loadNotes(ctx)
	n.r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if notes[i].ID == id {
			return &notes[i], nil
		}
	}
	return nil, nil
}

func (n *kvNoteRepo) Update(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	if err := checkUpdate(upd); err != nil {
		return nil, err
	}

	n.r.mu.Lock()
	defer n.r.mu.Unlock()

	notes, err := n.r.loadNotes(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range notes {
		if notes[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, notFound("note", id)
	}

	note := notes[idx]
	upd.Apply(&note)
	note.UpdatedAt = n.r.opts.touch(note.UpdatedAt)
	notes[idx] = note

	if err := n.r.save(ctx, NotesKey, notes); err != nil {
		return nil, err
	}
	return &note, nil
}

func (n *kvNoteRepo) Delete(ctx context.Context, id string) error {
	n.r.mu.Lock()
	defer n.r.mu.Unlock()

	notes, err := n.r.loadNotes(ctx)
	if err != nil {
		return err
	}
	kept := notes[:0]
	for _, note := range notes {
		if note.ID != id {
			kept = append(kept, note)
		}
	}
	if len(kept) == len(notes) {
		return nil
	}
	return n.r.save(ctx, NotesKey, kept)
}

func (n *kvNoteRepo) Search(ctx context.Context, query string) ([]models.Note, error) {
	if blankQuery(query) {
		return []models.Note{}, nil
	}
	all, err := n.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return filterByQuery(all, query), nil
}

// kvFolderRepo implements FolderRepository
type kvFolderRepo struct {
	r *KVRepository
}

func (f *kvFolderRepo) Create(ctx context.Context, name, color string) (*models.Folder, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	folders, err := f.r.loadFolders(ctx)
	if err != nil {
		return nil, err
	}
	return f.create(ctx, folders, name, color)
}

// create appends to an already loaded collection; the caller holds mu
func (f *kvFolderRepo) create(ctx context.Context, folders []models.Folder, name, color string) (*models.Folder, error) {
	folder, err := f.r.opts.newFolder(name, color)
	if err != nil {
		return nil, err
	}
	if folder.IsDefault() {
		for _, existing := range folders {
			if existing.IsDefault() {
				return nil, errDefaultExists()
			}
		}
	}
	folders = append(folders, folder)
	if err := f.r.save(ctx, FoldersKey, folders); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (f *kvFolderRepo) List(ctx context.Context) ([]models.Folder, error) {
	f.r.mu.Lock()
	folders, err := f.r.loadFolders(ctx)
	f.r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sortFolders(folders)
	return folders, nil
}

func (f *kvFolderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	folders, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range folders {
		if folders[i].ID == id {
			return &folders[i], nil
		}
	}
	return nil, nil
}

func (f *kvFolderRepo) Delete(ctx context.Context, id string) error {
	if err := checkDeletable(id); err != nil {
		return err
	}

	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	notes, err := f.r.loadNotes(ctx)
	if err != nil {
		return err
	}
	moved := 0
	for i := range notes {
		if notes[i].InFolder(id) {
			notes[i].FolderID = models.StringPtr(models.DefaultFolderID)
			moved++
		}
	}
	if moved > 0 {
		if err := f.r.save(ctx, NotesKey, notes); err != nil {
			return err
		}
	}

	folders, err := f.r.loadFolders(ctx)
	if err != nil {
		return err
	}
	kept := folders[:0]
	for _, folder := range folders {
		if folder.ID != id {
			kept = append(kept, folder)
		}
	}
	if len(kept) != len(folders) {
		if err := f.r.save(ctx, FoldersKey, kept); err != nil {
			return err
		}
	}

	f.r.opts.Logger.Debug().Str("folder", id).Int("moved_notes", moved).Msg("folder deleted")
	return nil
}
