package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dastanaron/voicenotes/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timestamps are stored as fixed width UTC text so ORDER BY sorts them chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db      *sql.DB
	opts    Options
	notes   *noteRepo
	folders *folderRepo
}

// NewSQLiteRepository opens the database at dbPath and brings its schema up to date
func NewSQLiteRepository(dbPath string, opts Options) (*SQLiteRepository, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, storageErr("open", err)
	}
	// one connection: writes are serialized and ":memory:" stays a single database
	db.SetMaxOpenConns(1)

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	repo := &SQLiteRepository{
		db:   db,
		opts: opts,
	}
	repo.notes = &noteRepo{db: db, opts: opts}
	repo.folders = &folderRepo{db: db, opts: opts}

	return repo, nil
}

func migrateSchema(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close would close db as well, so only the source is released
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Initialize creates the default folder if it is missing
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	f, err := r.folders.GetByID(ctx, models.DefaultFolderID)
	if err != nil {
		return err
	}
	if f != nil {
		return nil
	}
	_, err = r.folders.Create(ctx, models.DefaultFolderName, models.DefaultFolderColor)
	if err == nil {
		r.opts.Logger.Info().Str("backend", "sqlite").Msg("default folder created")
	}
	return err
}

// Notes returns the note repository
func (r *SQLiteRepository) Notes() NoteRepository {
	return r.notes
}

// Folders returns the folder repository
func (r *SQLiteRepository) Folders() FolderRepository {
	return r.folders
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullable(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// noteRepo implements NoteRepository
type noteRepo struct {
	db   *sql.DB
	opts Options
}

const noteColumns = `id, title, content, folder_id, created_at, updated_at`

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		n                models.Note
		folderID         sql.NullString
		created, updated string
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &folderID, &created, &updated); err != nil {
		return nil, err
	}
	if folderID.Valid {
		n.FolderID = &folderID.String
	}
	var err error
	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &n, nil
}

func getNote(ctx context.Context, q rowQuerier, id string) (*models.Note, error) {
	n, err := scanNote(q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get note", err)
	}
	return n, nil
}

func (r *noteRepo) Create(ctx context.Context, title, content string, folderID *string) (*models.Note, error) {
	n := r.opts.newNote(title, content, folderID)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes(id, title, content, folder_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, nullable(n.FolderID), formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	if err != nil {
		return nil, storageErr("create note", err)
	}
	return &n, nil
}

func (r *noteRepo) List(ctx context.Context, folderID *string) ([]models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if folderID != nil {
		query += ` WHERE folder_id = ?`
		args = append(args, *folderID)
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, storageErr("list notes", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list notes", err)
	}
	return notes, nil
}

func (r *noteRepo) GetByID(ctx context.Context, id string) (*models.Note, error) {
	return getNote(ctx, r.db, id)
}

func (r *noteRepo) Update(ctx context.Context, id string, upd models.NoteUpdate) (*models.Note, error) {
	if err := checkUpdate(upd); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("update note", err)
	}
	defer tx.Rollback()

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, notFound("note", id)
	}

	upd.Apply(n)
	n.UpdatedAt = r.opts.touch(n.UpdatedAt)

	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, folder_id = ?, updated_at = ? WHERE id = ?`,
		n.Title, n.Content, nullable(n.FolderID), formatTime(n.UpdatedAt), n.ID,
	)
	if err != nil {
		return nil, storageErr("update note", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("update note", err)
	}
	return n, nil
}

func (r *noteRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	return storageErr("delete note", err)
}

func (r *noteRepo) Search(ctx context.Context, query string) ([]models.Note, error) {
	if blankQuery(query) {
		return []models.Note{}, nil
	}
	// SQLite lower() only folds ASCII, so matching happens in Go
	all, err := r.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return filterByQuery(all, query), nil
}

// folderRepo implements FolderRepository
type folderRepo struct {
	db   *sql.DB
	opts Options
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var (
		f       models.Folder
		created string
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Color, &created); err != nil {
		return nil, err
	}
	var err error
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *folderRepo) Create(ctx context.Context, name, color string) (*models.Folder, error) {
	f, err := r.opts.newFolder(name, color)
	if err != nil {
		return nil, err
	}
	if f.IsDefault() {
		existing, err := r.GetByID(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errDefaultExists()
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO folders(id, name, color, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.Color, formatTime(f.CreatedAt),
	)
	if err != nil {
		return nil, storageErr("create folder", err)
	}
	return &f, nil
}

func (r *folderRepo) List(ctx context.Context) ([]models.Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color, created_at FROM folders ORDER BY created_at, id`)
	if err != nil {
		return nil, storageErr("list folders", err)
	}
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, storageErr("list folders", err)
		}
		folders = append(folders, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list folders", err)
	}
	return folders, nil
}

func (r *folderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM folders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get folder", err)
	}
	return f, nil
}

func (r *folderRepo) Delete(ctx context.Context, id string) error {
	if err := checkDeletable(id); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("delete folder", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notes SET folder_id = ? WHERE folder_id = ?`, models.DefaultFolderID, id)
	if err != nil {
		return storageErr("delete folder", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return storageErr("delete folder", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("delete folder", err)
	}

	moved, _ := res.RowsAffected()
	r.opts.Logger.Debug().Str("folder", id).Int64("moved_notes", moved).Msg("folder deleted")
	return nil
}
