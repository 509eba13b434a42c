// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package downloader talks to the external BitTorrent client and keeps the
// task table in sync with its live state.
package downloader

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/domain"
	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
)

const (
	DefaultSavePath = "/downloads/bangumi"
	DefaultCategory = "Bangumi"
)

var (
	// ErrInvalidAuthentication reports rejected downloader credentials.
	ErrInvalidAuthentication = errors.New("downloader: invalid authentication")
	// ErrClient reports any other failure from the external client.
	ErrClient = errors.New("downloader: client error")
)

// TorrentRef identifies a .torrent resource to dispatch, with optional
// save-path and category suggestions.
type TorrentRef struct {
	URL      string
	SavePath string
	Category string
}

// DownloadingTorrent is one entry of the client's live snapshot.
type DownloadingTorrent struct {
	Hash     string
	Status   models.TaskStatus
	SavePath string
	Name     string
}

// FilePath is where the torrent's data lives: a file for single-file
// torrents, a directory otherwise.
func (t DownloadingTorrent) FilePath() string {
	return filepath.Join(t.SavePath, t.Name)
}

// Downloader is the capability interface to the external torrent client.
// Implementations may tolerate repeated dispatches of the same URL
// silently.
type Downloader interface {
	Dispatch(ctx context.Context, ref TorrentRef) error
	Snapshot(ctx context.Context) ([]DownloadingTorrent, error)
}

// FileRenamer is the optional capability of renaming files inside the
// client itself.
type FileRenamer interface {
	RenameFile(ctx context.Context, hash, oldPath, newPath string) error
}

// New builds the adapter selected by configuration.
func New(ctx context.Context, cfg domain.DownloaderConfig, cache *metainfo.Cache, logger zerolog.Logger) (Downloader, error) {
	switch cfg.Type {
	case "qbittorrent":
		return NewQBittorrent(ctx, cfg.Host, cfg.Username, cfg.Password, logger)
	case "dummy":
		return NewDummy(cache, "", logger), nil
	default:
		return nil, errors.Errorf("unknown downloader type: %q", cfg.Type)
	}
}
