package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"mproc/internal/api"
	"mproc/internal/blobstore"
	"mproc/internal/config"
	"mproc/internal/store"
	"mproc/internal/tasks"
)

const (
	blobDirName      = "blobs"
	serverProbeDelay = 300 * time.Millisecond
)

var (
	errServerRunning = errors.New("an mproc server owns the data directory")
	errBlobNotFound  = errors.New("blob not found")
)

// workspace is one data directory opened for in-process use.
type workspace struct {
	meta  *store.Store
	blobs *blobstore.FileStore
	repo  *tasks.Repository
}

func openWorkspace(ctx context.Context, cfg *config.Config, notifier tasks.Notifier) (*workspace, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	dataDir := strings.TrimSpace(cfg.DataDir)
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}

	logger := slog.Default()
	meta := store.OpenDir(dataDir)
	blobs, err := blobstore.OpenDir(filepath.Join(dataDir, blobDirName), logger)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	repo, err := tasks.Open(ctx, tasks.Options{
		Meta:              meta,
		Blobs:             blobs,
		Logger:            logger,
		Notifier:          notifier,
		DefaultColor:      cfg.DefaultColor,
		MaxUploadBytes:    cfg.Attachments.MaxUploadBytes,
		AllowedMediaTypes: cfg.Attachments.AllowedMediaTypes,
	})
	if err != nil {
		_ = blobs.Close()
		_ = meta.Close()
		return nil, err
	}
	return &workspace{meta: meta, blobs: blobs, repo: repo}, nil
}

func (w *workspace) Close() error {
	return errors.Join(w.blobs.Close(), w.meta.Close())
}

// withRepo opens the workspace for reading.
func withRepo(ctx context.Context, cfg *config.Config, fn func(*tasks.Repository) error) error {
	ws, err := openWorkspace(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ws.repo)
}

// withWritableRepo opens the workspace for a mutation. A running server keeps
// its own copy of the collection in memory, so writing behind its back would
// be lost on its next save.
func withWritableRepo(ctx context.Context, cfg *config.Config, fn func(*tasks.Repository) error) error {
	if err := ensureNoServer(ctx, cfg); err != nil {
		return err
	}
	return withRepo(ctx, cfg, fn)
}

func ensureNoServer(ctx context.Context, cfg *config.Config) error {
	client, running := runningServer(ctx, cfg)
	if running {
		return fmt.Errorf("%w at %s", errServerRunning, client.BaseURL())
	}
	return nil
}

// runningServer reports whether an mproc server answers at the configured API URL.
func runningServer(ctx context.Context, cfg *config.Config) (*api.Client, bool) {
	if cfg == nil || strings.TrimSpace(cfg.APIURL) == "" {
		return nil, false
	}
	client := api.NewClient(cfg.APIURL)
	probeCtx, cancel := context.WithTimeout(ctx, serverProbeDelay)
	defer cancel()
	if err := client.Ping(probeCtx); err != nil {
		return client, false
	}
	return client, true
}
