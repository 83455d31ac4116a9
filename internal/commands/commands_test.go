package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/speech"
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newRepo(t *testing.T) repository.Repository {
	t.Helper()
	codec, err := repository.NewCodec(repository.CodecJSON)
	require.NoError(t, err)
	clock := &tickClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	repo := repository.NewKVRepository(repository.NewMemoryStorage(), codec, repository.Options{Clock: clock.Now})
	require.NoError(t, repo.Initialize(context.Background()))
	return repo
}

// summary maps "folder name/title" to content
func summary(t *testing.T, repo repository.Repository) map[string]string {
	t.Helper()
	ctx := context.Background()
	folders, err := repo.Folders().List(ctx)
	require.NoError(t, err)
	names := map[string]string{}
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	notes, err := repo.Notes().List(ctx, nil)
	require.NoError(t, err)
	out := map[string]string{}
	for _, n := range notes {
		folder := "-"
		if n.FolderID != nil {
			folder = names[*n.FolderID]
		}
		out[folder+"/"+n.Title] = n.Content
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)

	work, err := src.Folders().Create(ctx, "Work & Life", "#FF0000")
	require.NoError(t, err)
	_, err = src.Notes().Create(ctx, "Groceries", "milk\neggs", models.StringPtr(models.DefaultFolderID))
	require.NoError(t, err)
	_, err = src.Notes().Create(ctx, "Plan <Q3>", "\nstarts with newline & <b>tags</b>", &work.ID)
	require.NoError(t, err)
	_, err = src.Notes().Create(ctx, "Loose", "", nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.html")
	var out bytes.Buffer
	export := NewExportCommand(src, zerolog.Nop())
	export.out = &out
	require.NoError(t, export.Execute(ctx, path))
	require.Contains(t, out.String(), "Exported 3 notes")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `<section data-id="default" data-color="#007AFF">`)
	require.Contains(t, string(raw), "<h2>Work &amp; Life</h2>")
	require.Contains(t, string(raw), "<h2>Unfiled</h2>")

	dst := newRepo(t)
	out.Reset()
	imp := NewImportCommand(dst, zerolog.Nop())
	imp.out = &out
	require.NoError(t, imp.Execute(ctx, path))
	require.Contains(t, out.String(), "Imported 3 notes.")

	require.Equal(t, summary(t, src), summary(t, dst))

	folders, err := dst.Folders().List(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	require.Equal(t, "#FF0000", folders[1].Color)
}

func TestExportKeepsFolderOrder(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	for _, title := range []string{"first", "second", "third"} {
		_, err := src.Notes().Create(ctx, title, "", models.StringPtr(models.DefaultFolderID))
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "notes.html")
	export := NewExportCommand(src, zerolog.Nop())
	export.out = io.Discard
	require.NoError(t, export.Execute(ctx, path))

	dst := newRepo(t)
	imp := NewImportCommand(dst, zerolog.Nop())
	imp.out = io.Discard
	require.NoError(t, imp.Execute(ctx, path))

	notes, err := dst.Notes().List(ctx, nil)
	require.NoError(t, err)
	var titles []string
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	require.Equal(t, []string{"third", "second", "first"}, titles)
}

func TestImport_MissingFile(t *testing.T) {
	imp := NewImportCommand(newRepo(t), zerolog.Nop())
	imp.out = io.Discard
	err := imp.Execute(context.Background(), filepath.Join(t.TempDir(), "absent.html"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClearDoubles(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	notes := repo.Notes()

	older, err := notes.Create(ctx, "todo", "buy milk", nil)
	require.NoError(t, err)
	newer, err := notes.Create(ctx, "todo", "buy milk", nil)
	require.NoError(t, err)
	otherFolder, err := notes.Create(ctx, "todo", "buy milk", models.StringPtr(models.DefaultFolderID))
	require.NoError(t, err)
	_, err = notes.Create(ctx, "todo", "buy bread", nil)
	require.NoError(t, err)

	// touching the older copy makes it the one to keep
	_, err = notes.Update(ctx, older.ID, models.NoteUpdate{Title: models.StringPtr("todo")})
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := NewClearDoublesCommand(repo, zerolog.Nop())
	cmd.out = &out
	require.NoError(t, cmd.Execute(ctx))
	require.Contains(t, out.String(), "Deleted 1 duplicate note(s).")

	gone, err := notes.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	for _, id := range []string{older.ID, otherFolder.ID} {
		n, err := notes.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, n)
	}

	out.Reset()
	require.NoError(t, cmd.Execute(ctx))
	require.Equal(t, "No duplicate notes found.\n", out.String())
}

func transcriptEngine(input string) speech.Engine {
	return speech.NewLineEngine(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(input)), nil
	})
}

func TestDictate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	note, err := repo.Notes().Create(ctx, "Meeting", "Intro.", nil)
	require.NoError(t, err)

	engine := transcriptEngine("partial: hel\nfinal: hello world\n\nagain\n")
	var out bytes.Buffer
	cmd := NewDictateCommand(repo, engine, speech.AlwaysGranted, speech.DefaultOptions(), zerolog.Nop())
	cmd.out = &out
	require.NoError(t, cmd.Execute(ctx, note.ID))

	stored, err := repo.Notes().GetByID(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, "Intro. hello world again", stored.Content)
	require.True(t, stored.UpdatedAt.After(note.UpdatedAt))

	require.Contains(t, out.String(), "... hel\n")
	require.Contains(t, out.String(), "Saved 2 dictated sentence(s) to 'Meeting'.")
}

func TestDictate_Failures(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	note, err := repo.Notes().Create(ctx, "Meeting", "", nil)
	require.NoError(t, err)

	run := func(engine speech.Engine, perm speech.Permission, id string) error {
		cmd := NewDictateCommand(repo, engine, perm, speech.DefaultOptions(), zerolog.Nop())
		cmd.out = io.Discard
		return cmd.Execute(ctx, id)
	}

	t.Run("unknown note", func(t *testing.T) {
		err := run(transcriptEngine("x\n"), speech.AlwaysGranted, "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("permission denied", func(t *testing.T) {
		denied := speech.PermissionFunc(func(context.Context) (bool, error) { return false, nil })
		err := run(transcriptEngine("x\n"), denied, note.ID)
		require.ErrorIs(t, err, speech.ErrPermissionDenied)
	})

	t.Run("no recognizer", func(t *testing.T) {
		err := run(speech.NewCommandEngine(nil), speech.AlwaysGranted, note.ID)
		require.ErrorIs(t, err, ErrSpeechUnavailable)
	})

	t.Run("engine error keeps earlier text", func(t *testing.T) {
		err := run(transcriptEngine("final: kept\nerror: audio: mic lost\nfinal: dropped\n"), speech.AlwaysGranted, note.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "mic lost")

		stored, err := repo.Notes().GetByID(ctx, note.ID)
		require.NoError(t, err)
		require.Equal(t, "kept", stored.Content)
	})

	t.Run("context cancelled before start", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		engine := speech.NewLineEngine(func(context.Context) (io.ReadCloser, error) {
			return nil, context.Canceled
		})
		cmd := NewDictateCommand(repo, engine, speech.AlwaysGranted, speech.DefaultOptions(), zerolog.Nop())
		cmd.out = io.Discard
		require.Error(t, cmd.Execute(cctx, note.ID))
	})
}

func TestAbout(t *testing.T) {
	a := ReadAbout("1.2.3")
	require.Equal(t, AppName, a.Name)
	require.Equal(t, "1.2.3", a.Version)
	require.Equal(t, runtime.Version(), a.GoVersion)
	require.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, a.Platform)
	require.NotEmpty(t, a.Build)

	require.NotEmpty(t, ReadAbout("").Version)

	var out bytes.Buffer
	cmd := NewAboutCommand("1.2.3")
	cmd.out = &out
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "VoiceNotes 1.2.3", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "Build:"))
}
