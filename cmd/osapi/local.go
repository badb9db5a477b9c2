package main

import (
	"fmt"
	"log/slog"
	"strings"

	"osapi/internal/blobstore"
	"osapi/internal/config"
	"osapi/internal/server"
	"osapi/internal/store"
)

// openLocal opens the database and image storage named by cfg.
func openLocal(cfg *config.Config) (*store.Store, *blobstore.LocalDir, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not initialized")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, nil, fmt.Errorf("db path is required")
	}
	if strings.TrimSpace(cfg.StorageRoot) == "" {
		return nil, nil, fmt.Errorf("storage root is required")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := blobstore.NewLocalDir(cfg.StorageRoot)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, blobs, nil
}

func uploadPolicy(cfg *config.Config) server.UploadPolicy {
	return server.UploadPolicy{
		MaxBytes:           cfg.Uploads.MaxUploadBytes,
		MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
		AllowedMediaTypes:  cfg.Uploads.AllowedMediaTypes,
	}
}

// localSentenceService runs sentence operations in-process, without the HTTP server.
func localSentenceService(cfg *config.Config, st *store.Store, blobs *blobstore.LocalDir) *server.SentenceService {
	logger := slog.Default().With("component", "cli")
	return server.NewSentenceService(st, blobs, uploadPolicy(cfg), cfg.PublicURL, logger)
}
