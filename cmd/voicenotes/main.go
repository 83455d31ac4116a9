package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dastanaron/voicenotes/internal/commands"
	"github.com/dastanaron/voicenotes/internal/config"
	"github.com/dastanaron/voicenotes/internal/idgen"
	"github.com/dastanaron/voicenotes/internal/logging"
	"github.com/dastanaron/voicenotes/internal/repository"
	"github.com/dastanaron/voicenotes/internal/service"
	"github.com/dastanaron/voicenotes/internal/speech"
	"github.com/dastanaron/voicenotes/internal/state"
	"github.com/dastanaron/voicenotes/internal/ui"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to YAML config file")
	dbPath := flag.String("db", "", "Path to database file (default: ~/.voicenotes/voicenotes.db)")
	backend := flag.String("backend", "", "Storage backend: sqlite or kv")
	importPath := flag.String("import", "", "Path to HTML notes archive to import")
	exportPath := flag.String("export", "", "Path to HTML notes archive to export")
	clearDoubles := flag.Bool("clear-doubles", false, "Remove duplicate notes (same folder, title and content)")
	dictateID := flag.String("dictate", "", "Dictate into the note with this ID")
	transcriptPath := flag.String("transcript", "", "Read recognizer lines from this file instead of the speech command")
	showVersion := flag.Bool("version", false, "Print version information")
	flag.Parse()

	cli := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *showVersion {
		if err := commands.NewAboutCommand(version).Execute(); err != nil {
			cli.Fatal().Err(err).Msg("Version failed")
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		cli.Fatal().Err(err).Msg("Failed to load config")
	}
	if *dbPath != "" {
		cfg.WithDBPath(*dbPath)
	}
	if *backend != "" {
		cfg.WithBackend(*backend)
	}

	logs, err := logging.New().FromPath(cfg.LogPath).WithLevel(cfg.LogLevel).Make()
	if err != nil {
		cli.Fatal().Err(err).Msg("Failed to open log")
	}
	defer logs.Close()
	log := logs.Logger

	if cfg.Backend == repository.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			cli.Fatal().Err(err).Msg("Failed to create database directory")
		}
	}

	ids, err := idgen.New(cfg.IDScheme)
	if err != nil {
		cli.Fatal().Err(err).Msg("Invalid id scheme")
	}

	repo, err := repository.Open(repository.Settings{
		Backend: cfg.Backend,
		DBPath:  cfg.DBPath,
		KVDir:   cfg.KVDir,
		KVCodec: cfg.KVCodec,
	}, repository.Options{IDs: ids, Logger: &log})
	if err != nil {
		cli.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repo.Initialize(ctx); err != nil {
		cli.Fatal().Err(err).Msg("Failed to initialize database")
	}
	log.Info().Str("backend", cfg.Backend).Str("version", version).Msg("started")

	speechOpts := speech.Options{
		Language:       cfg.Speech.Language,
		PartialResults: cfg.Speech.PartialResults,
		Timeout:        cfg.Speech.Timeout,
	}
	var engine speech.Engine = speech.NewCommandEngine(cfg.Speech.Command)
	if *transcriptPath != "" {
		engine = speech.NewFileEngine(*transcriptPath)
	}

	// Handle import command
	if *importPath != "" {
		if err := commands.NewImportCommand(repo, log).Execute(ctx, *importPath); err != nil {
			cli.Fatal().Err(err).Msg("Import failed")
		}
		return
	}

	// Handle export command
	if *exportPath != "" {
		if err := commands.NewExportCommand(repo, log).Execute(ctx, *exportPath); err != nil {
			cli.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	// Handle clear doubles command
	if *clearDoubles {
		if err := commands.NewClearDoublesCommand(repo, log).Execute(ctx); err != nil {
			cli.Fatal().Err(err).Msg("Clear doubles failed")
		}
		return
	}

	// Handle dictate command
	if *dictateID != "" {
		cmd := commands.NewDictateCommand(repo, engine, speech.AlwaysGranted, speechOpts, log)
		if err := cmd.Execute(ctx, *dictateID); err != nil {
			cli.Fatal().Err(err).Msg("Dictation failed")
		}
		return
	}

	// Run TUI application
	noteSvc := service.NewNoteService(repo, log)
	folderSvc := service.NewFolderService(repo, log)
	store := state.NewStore(noteSvc, folderSvc, log)
	app := ui.NewApp(store, speech.NewAdapter(engine, log), speech.AlwaysGranted, speechOpts, log)

	if err := app.Run(ctx); err != nil {
		cli.Fatal().Err(err).Msg("UI failed")
	}
}
