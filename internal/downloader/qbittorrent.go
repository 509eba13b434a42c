// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"context"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/models"
)

const loginTimeout = 30 * time.Second

var (
	_ Downloader  = (*QBittorrent)(nil)
	_ FileRenamer = (*QBittorrent)(nil)
)

// QBittorrent drives a qBittorrent instance over its Web API.
type QBittorrent struct {
	client *qbt.Client
	logger zerolog.Logger
}

func NewQBittorrent(ctx context.Context, host, username, password string, logger zerolog.Logger) (*QBittorrent, error) {
	client := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: username,
		Password: password,
		Timeout:  int(loginTimeout.Seconds()),
	})

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	if err := client.LoginCtx(loginCtx); err != nil {
		return nil, errors.Wrapf(ErrInvalidAuthentication, "login to %s: %v", host, err)
	}

	d := &QBittorrent{
		client: client,
		logger: logger.With().Str("module", "downloader").Logger(),
	}

	d.logger.Debug().Str("host", host).Msg("connected to qBittorrent")
	return d, nil
}

func (d *QBittorrent) Dispatch(ctx context.Context, ref TorrentRef) error {
	options := map[string]string{
		"savepath": ref.SavePath,
		"category": ref.Category,
	}

	if err := d.client.AddTorrentFromUrlCtx(ctx, ref.URL, options); err != nil {
		return errors.Wrapf(ErrClient, "add torrent %s: %v", ref.URL, err)
	}
	return nil
}

func (d *QBittorrent) Snapshot(ctx context.Context) ([]DownloadingTorrent, error) {
	torrents, err := d.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, errors.Wrapf(ErrClient, "get torrent list: %v", err)
	}

	snapshot := make([]DownloadingTorrent, 0, len(torrents))
	for _, t := range torrents {
		snapshot = append(snapshot, DownloadingTorrent{
			Hash:     t.Hash,
			Status:   mapTorrentState(t.State),
			SavePath: t.SavePath,
			Name:     t.Name,
		})
	}
	return snapshot, nil
}

func (d *QBittorrent) RenameFile(ctx context.Context, hash, oldPath, newPath string) error {
	if err := d.client.RenameFileCtx(ctx, hash, oldPath, newPath); err != nil {
		return errors.Wrapf(ErrClient, "rename file in torrent %s: %v", hash, err)
	}
	return nil
}

// mapTorrentState translates qBittorrent states into the core lifecycle.
func mapTorrentState(state qbt.TorrentState) models.TaskStatus {
	switch state {
	case qbt.TorrentStatePausedDl:
		return models.StatusPaused
	case qbt.TorrentStateUploading,
		qbt.TorrentStatePausedUp,
		qbt.TorrentStateQueuedUp,
		qbt.TorrentStateStalledUp:
		return models.StatusCompleted
	case qbt.TorrentStateAllocating,
		qbt.TorrentStateCheckingUp,
		qbt.TorrentStateForcedUp,
		qbt.TorrentStateDownloading,
		qbt.TorrentStateQueuedDl,
		qbt.TorrentStateStalledDl,
		qbt.TorrentStateCheckingDl,
		qbt.TorrentStateForcedDl,
		qbt.TorrentStateCheckingResumeData,
		qbt.TorrentStateMetaDl:
		return models.StatusDownloading
	default:
		// error, missingFiles, moving, unknown
		return models.StatusError
	}
}
