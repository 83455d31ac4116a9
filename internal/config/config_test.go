package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := newConfigIn("/data")
	require.Equal(t, "sqlite", cfg.Backend)
	require.Equal(t, filepath.Join("/data", "voicenotes.db"), cfg.DBPath)
	require.Equal(t, filepath.Join("/data", "kv"), cfg.KVDir)
	require.Equal(t, "json", cfg.KVCodec)
	require.Equal(t, "time", cfg.IDScheme)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "en-US", cfg.Speech.Language)
	require.True(t, cfg.Speech.PartialResults)
	require.Equal(t, 5*time.Second, cfg.Speech.Timeout)
	require.Empty(t, cfg.Speech.Command)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: ` + dir + `
backend: kv
kv_codec: cbor
speech:
  language: de-DE
  timeout: 3s
  command: ["whisper-stream", "--lines"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "kv", cfg.Backend)
	require.Equal(t, "cbor", cfg.KVCodec)
	require.Equal(t, filepath.Join(dir, "kv"), cfg.KVDir)
	require.Equal(t, filepath.Join(dir, "voicenotes.db"), cfg.DBPath)
	require.Equal(t, "de-DE", cfg.Speech.Language)
	require.True(t, cfg.Speech.PartialResults)
	require.Equal(t, 3*time.Second, cfg.Speech.Timeout)
	require.Equal(t, []string{"whisper-stream", "--lines"}, cfg.Speech.Command)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Backend)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Run("valid overrides", func(t *testing.T) {
		t.Setenv("VOICENOTES_BACKEND", "kv")
		t.Setenv("VOICENOTES_DB_PATH", "/tmp/x.db")
		t.Setenv("VOICENOTES_ID_SCHEME", "uuid")
		t.Setenv("VOICENOTES_SPEECH_PARTIAL_RESULTS", "false")
		t.Setenv("VOICENOTES_SPEECH_TIMEOUT", "10s")
		t.Setenv("VOICENOTES_SPEECH_COMMAND", "dictate --stdout")

		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, "kv", cfg.Backend)
		require.Equal(t, "/tmp/x.db", cfg.DBPath)
		require.Equal(t, "uuid", cfg.IDScheme)
		require.False(t, cfg.Speech.PartialResults)
		require.Equal(t, 10*time.Second, cfg.Speech.Timeout)
		require.Equal(t, []string{"dictate", "--stdout"}, cfg.Speech.Command)
	})

	t.Run("data dir moves derived paths", func(t *testing.T) {
		t.Setenv("VOICENOTES_DATA_DIR", "/srv/notes")

		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, "/srv/notes", cfg.DataDir)
		require.Equal(t, filepath.Join("/srv/notes", "voicenotes.db"), cfg.DBPath)
		require.Equal(t, filepath.Join("/srv/notes", "voicenotes.log"), cfg.LogPath)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		t.Setenv("VOICENOTES_SPEECH_PARTIAL_RESULTS", "maybe")
		t.Setenv("VOICENOTES_SPEECH_TIMEOUT", "soon")

		cfg, err := Load("")
		require.NoError(t, err)
		require.True(t, cfg.Speech.PartialResults)
		require.Equal(t, 5*time.Second, cfg.Speech.Timeout)
	})
}

func TestLoad_DotEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VOICENOTES_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("VOICENOTES_LOG_LEVEL", "")
	os.Unsetenv("VOICENOTES_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestWithSetters(t *testing.T) {
	cfg := newConfigIn("/data").WithDBPath("/other.db").WithBackend("kv")
	require.Equal(t, "/other.db", cfg.DBPath)
	require.Equal(t, "kv", cfg.Backend)
}
