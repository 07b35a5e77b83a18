package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/OCAP2/sitac/internal/config"
	"github.com/OCAP2/sitac/internal/storage"
	filestorage "github.com/OCAP2/sitac/internal/storage/file"
	pgstorage "github.com/OCAP2/sitac/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/sitac/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/sitac/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// openStorage creates and initializes the configured backend.
func openStorage(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	backend, err := createStorageBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageType(cfg), err)
	}
	log.Info().Str("type", storageType(cfg)).Msg("Storage backend initialized")
	return backend, nil
}

func storageType(cfg config.StorageConfig) string {
	if cfg.Type == "" {
		return "file"
	}
	return cfg.Type
}

func createStorageBackend(cfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	switch storageType(cfg) {
	case "file":
		return filestorage.New(filestorage.Config{
			Path:     cfg.File.Path,
			Compress: cfg.File.Compress,
		}, log), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.SQLite.Path,
			DumpPath:     cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, log)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case "postgres":
		backend, err := pgstorage.New(config.PostgresDSN(), log)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case "websocket":
		url, secret := cfg.WebSocket.URL, cfg.WebSocket.Secret
		if url == "" {
			share := config.GetShareConfig()
			if share.URL == "" {
				return nil, fmt.Errorf("websocket storage needs storage.websocket.url or share.url")
			}
			url, secret = strings.TrimRight(share.URL, "/")+"/share", share.APIKey
		}
		host, _ := os.Hostname()
		return wsstorage.New(wsstorage.Config{
			URL:    httpToWS(url),
			Secret: secret,
			Client: host,
		}, log), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
