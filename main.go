package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eraiza0816/logawa/config"
	"github.com/eraiza0816/logawa/discord"
	"github.com/eraiza0816/logawa/drive"
	"github.com/eraiza0816/logawa/firebase"
	"github.com/eraiza0816/logawa/github"
	"github.com/eraiza0816/logawa/logging"
	"github.com/eraiza0816/logawa/query"
)

const shutdownTimeout = 30 * time.Second

func main() {
	diag := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		diag.Fatal().Err(err).Msg("failed to load config")
	}

	store := logging.NewLocalLogStore(diag, cfg.LogDirectory)
	queue := logging.NewUploadQueue(cfg.QueueMaxSize)
	lctx := logging.NewLoggingContext(diag, store, queue)

	ctx := context.Background()

	// Firestore is optional: without credentials the bot keeps logging to
	// local files and Discord channels only.
	var remote logging.RemoteStore
	fsStore, err := firebase.New(ctx, diag, cfg.FirebaseCredentials)
	if err != nil {
		diag.Warn().Err(err).Msg("firestore unavailable, remote sync disabled")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := fsStore.Ping(pingCtx); err != nil {
			diag.Warn().Err(err).Msg("firestore probe failed, continuing anyway")
		}
		cancel()
		remote = fsStore
	}

	var mirrors []logging.FileMirror
	var driveUp *drive.Uploader
	if cfg.GoogleDriveEnabled {
		driveUp, err = drive.New(ctx, diag, cfg.GoogleDriveCredentials, cfg.GoogleDriveFolderID)
		if err != nil {
			diag.Warn().Err(err).Msg("google drive unavailable, drive mirroring disabled")
		} else {
			mirrors = append(mirrors, driveUp)
		}
	}
	var githubUp *github.Uploader
	if cfg.GithubLoggingEnabled {
		githubUp, err = github.New(diag, cfg.GithubToken, cfg.GithubRepo, cfg.GithubBranch)
		if err != nil {
			diag.Warn().Err(err).Msg("github unavailable, github mirroring disabled")
		} else {
			mirrors = append(mirrors, githubUp)
		}
	}

	scanner := logging.NewFileSyncScanner(diag, store, queue, cfg.MaxFileSizeBytes(), cfg.MaxLinesPerFile)

	var synchronizer *logging.BatchSynchronizer
	if remote != nil {
		synchronizer = logging.NewBatchSynchronizer(diag, queue, scanner, remote, store, mirrors, cfg.SyncInterval())
	}

	index, err := query.NewIndex(filepath.Join(cfg.LogDirectory, "index.duckdb"))
	if err != nil {
		diag.Warn().Err(err).Msg("log index unavailable, weekly reports disabled")
	}

	maintenance := func(ctx context.Context) {
		if synchronizer != nil {
			synchronizer.ForceFlush(ctx)
		}
		if driveUp != nil {
			driveUp.QueueAll(store)
		}
		if githubUp != nil {
			githubUp.QueueAll(store)
		}
		if index == nil {
			return
		}
		if _, err := index.IngestAll(store); err != nil {
			diag.Error().Err(err).Msg("log index ingest failed")
		}
		report, err := index.Report(time.Now().AddDate(0, 0, -cfg.RetentionDays))
		if err != nil {
			diag.Error().Err(err).Msg("weekly report failed")
			return
		}
		lctx.Record(logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, report, map[string]any{
			"event": "weeklyMaintenance",
		}))
	}

	weekday, hour := cfg.MaintenanceWindow()
	retention := logging.NewRetentionScheduler(diag, store, cfg.RetentionDays, weekday, hour, maintenance)

	pipeline := &logging.Pipeline{Ctx: lctx, Synchronizer: synchronizer, Retention: retention}
	pipeline.Start()
	if driveUp != nil {
		driveUp.Start()
	}
	if githubUp != nil {
		githubUp.Start()
	}

	session, _, err := discord.StartBot(cfg, lctx)
	if err != nil {
		diag.Fatal().Err(err).Msg("failed to start bot")
	}

	lctx.Record(logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, "LOGAWA bot started", map[string]any{
		"event": "botStartup",
	}))
	diag.Info().Msg("Bot is now running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	diag.Info().Msg("Bot shutting down...")
	lctx.Record(logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, "LOGAWA bot stopping", map[string]any{
		"event": "botShutdown",
	}))

	if err := session.Close(); err != nil {
		diag.Error().Err(err).Msg("failed to close Discord session")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	pipeline.Stop(stopCtx)

	if driveUp != nil {
		driveUp.ProcessQueue(stopCtx)
		driveUp.Stop()
	}
	if githubUp != nil {
		githubUp.ProcessQueue(stopCtx)
		githubUp.Stop()
	}
	if index != nil {
		index.Close()
	}
	if fsStore != nil {
		fsStore.Close()
	}
}
