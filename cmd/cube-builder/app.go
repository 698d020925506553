package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ramonehamilton/cube-builder/internal/backup"
	"github.com/ramonehamilton/cube-builder/internal/config"
	"github.com/ramonehamilton/cube-builder/internal/resolve"
	"github.com/ramonehamilton/cube-builder/internal/scryfall"
	"github.com/ramonehamilton/cube-builder/internal/session"
	"github.com/ramonehamilton/cube-builder/internal/storage"
	"github.com/ramonehamilton/cube-builder/internal/version"
)

// app is the set of components one command works with.
type app struct {
	db       *storage.DB
	client   *scryfall.Client
	resolver *resolve.Resolver
	session  *session.Session
	logger   *slog.Logger
}

func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := storage.Open(storage.DefaultConfig(dbPath))
	if err != nil {
		return nil, err
	}

	rate, _ := cfg.GetRateInterval()
	timeout, _ := cfg.GetTimeout()
	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = "cube-builder/" + version.GetVersion()
	}
	client := scryfall.NewClient(scryfall.ClientOptions{
		BaseURL:      cfg.API.BaseURL,
		UserAgent:    userAgent,
		RateInterval: rate,
		Timeout:      timeout,
		Logger:       logger,
	})

	resolver := resolve.New(client, resolve.Options{
		PrimaryLang:   cfg.Search.PrimaryLang,
		SecondaryLang: cfg.Search.SecondaryLang,
		MaxCandidates: cfg.Search.MaxCandidates,
		Logger:        logger,
	})

	sess, err := session.Open(ctx, storage.NewKVStore(db), session.Options{
		Namespace: cfg.Storage.Namespace,
		Policy:    backupPolicy(cfg),
		Logger:    logger,
	})
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &app{
		db:       db,
		client:   client,
		resolver: resolver,
		session:  sess,
		logger:   logger,
	}, nil
}

func backupPolicy(cfg *config.Config) backup.Policy {
	interval, err := cfg.GetBackupInterval()
	if err != nil {
		interval = backup.DefaultMinInterval
	}
	return backup.Policy{Capacity: cfg.Backup.Capacity, MinInterval: interval}
}

func (a *app) Close() error {
	return a.db.Close()
}

func debounceOf(cfg *config.Config) time.Duration {
	d, err := cfg.GetDebounce()
	if err != nil {
		return 0
	}
	return d
}
