package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"`
	Backend  string `yaml:"backend"`
	DBPath   string `yaml:"db_path"`
	KVDir    string `yaml:"kv_dir"`
	KVCodec  string `yaml:"kv_codec"`
	IDScheme string `yaml:"id_scheme"`
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
	Speech   Speech `yaml:"speech"`
}

// Speech holds dictation defaults
type Speech struct {
	Language       string        `yaml:"language"`
	PartialResults bool          `yaml:"partial_results"`
	Timeout        time.Duration `yaml:"timeout"`
	// Command is an external recognizer printing "partial: ..." / "final: ..." lines
	Command []string `yaml:"command"`
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	return newConfigIn(getDefaultDataDir())
}

func newConfigIn(dataDir string) *Config {
	return &Config{
		DataDir:  dataDir,
		Backend:  "sqlite",
		DBPath:   filepath.Join(dataDir, "voicenotes.db"),
		KVDir:    filepath.Join(dataDir, "kv"),
		KVCodec:  "json",
		IDScheme: "time",
		LogPath:  filepath.Join(dataDir, "voicenotes.log"),
		LogLevel: "info",
		Speech: Speech{
			Language:       "en-US",
			PartialResults: true,
			Timeout:        5 * time.Second,
		},
	}
}

// DefaultPath is where Load looks for a config file when none is given
func DefaultPath() string {
	return filepath.Join(getDefaultDataDir(), "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path
// (optional), a .env file in the working directory (optional) and
// VOICENOTES_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dataDir := c.DataDir
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.DataDir != dataDir {
		c.rebase(dataDir)
	}
	return nil
}

// rebase moves paths still pointing under the old data dir to the new one
func (c *Config) rebase(oldDir string) {
	for _, p := range []*string{&c.DBPath, &c.KVDir, &c.LogPath} {
		if rel, err := filepath.Rel(oldDir, *p); err == nil && !strings.HasPrefix(rel, "..") {
			*p = filepath.Join(c.DataDir, rel)
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOICENOTES_DATA_DIR"); v != "" {
		old := c.DataDir
		c.DataDir = v
		c.rebase(old)
	}
	c.Backend = getenv("VOICENOTES_BACKEND", c.Backend)
	c.DBPath = getenv("VOICENOTES_DB_PATH", c.DBPath)
	c.KVDir = getenv("VOICENOTES_KV_DIR", c.KVDir)
	c.KVCodec = getenv("VOICENOTES_KV_CODEC", c.KVCodec)
	c.IDScheme = getenv("VOICENOTES_ID_SCHEME", c.IDScheme)
	c.LogPath = getenv("VOICENOTES_LOG_PATH", c.LogPath)
	c.LogLevel = getenv("VOICENOTES_LOG_LEVEL", c.LogLevel)
	c.Speech.Language = getenv("VOICENOTES_SPEECH_LANGUAGE", c.Speech.Language)
	c.Speech.PartialResults = getenvBool("VOICENOTES_SPEECH_PARTIAL_RESULTS", c.Speech.PartialResults)
	c.Speech.Timeout = getenvDuration("VOICENOTES_SPEECH_TIMEOUT", c.Speech.Timeout)
	if v := os.Getenv("VOICENOTES_SPEECH_COMMAND"); v != "" {
		c.Speech.Command = strings.Fields(v)
	}
}

// WithDBPath sets a custom database path
func (c *Config) WithDBPath(path string) *Config {
	c.DBPath = path
	return c
}

// WithBackend selects the persistence backend
func (c *Config) WithBackend(backend string) *Config {
	c.Backend = backend
	return c
}

func getDefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".voicenotes"
	}
	return filepath.Join(homeDir, ".voicenotes")
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
