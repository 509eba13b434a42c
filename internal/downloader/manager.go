// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
)

// Hook is invoked for every status transition the reconciler observes.
// Hooks run synchronously on the reconciler's goroutine; long work must be
// moved to a goroutine spawned by the hook itself.
type Hook func(status models.TaskStatus, torrent DownloadingTorrent)

// Manager serialises access to the downloader adapter and reconciles its
// live snapshot against the task table.
type Manager struct {
	mu           sync.Mutex
	client       Downloader
	tasks        *models.TaskStore
	cache        *metainfo.Cache
	hooks        []Hook
	retryErrored bool
	logger       zerolog.Logger
}

func NewManager(client Downloader, tasks *models.TaskStore, cache *metainfo.Cache, retryErrored bool, logger zerolog.Logger) *Manager {
	return &Manager{
		client:       client,
		tasks:        tasks,
		cache:        cache,
		retryErrored: retryErrored,
		logger:       logger.With().Str("module", "downloader").Logger(),
	}
}

// AddHook registers a status-transition hook. Hooks fire in insertion
// order.
func (m *Manager) AddHook(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Dispatch resolves the torrent's info-hash, records the task, and hands
// the reference to the client. A torrent already tracked in a non-error
// state is a no-op success, which makes dispatch at-most-once per hash.
func (m *Manager) Dispatch(ctx context.Context, rssID *int64, ref TorrentRef, info *models.BangumiInfo) error {
	meta, err := m.cache.Get(ctx, ref.URL)
	if err != nil {
		return err
	}
	hash := meta.InfoHashHex()

	if ref.SavePath == "" {
		ref.SavePath = DefaultSavePath
	}
	if ref.Category == "" {
		ref.Category = DefaultCategory
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.retryErrored {
		task, err := m.tasks.GetTask(ctx, hash)
		if err != nil && !errors.Is(err, models.ErrTaskNotFound) {
			return err
		}
		if task != nil && task.Status == models.StatusError {
			m.logger.Debug().Str("hash", hash).Msg("skipping errored task, retry disabled")
			return nil
		}
	}

	task := &models.DownloadTask{
		TorrentHash: hash,
		TorrentURL:  ref.URL,
		StartTime:   time.Now(),
		Status:      models.StatusDownloading,
	}

	inserted, err := m.tasks.AddTask(ctx, rssID, task, info)
	if err != nil {
		return err
	}
	if inserted == 0 {
		m.logger.Debug().Str("hash", hash).Msg("task already tracked, skipping dispatch")
		return nil
	}

	return m.client.Dispatch(ctx, ref)
}

// Reconcile diffs the client snapshot against the task table, updating
// rows whose observed status changed and firing hooks for each transition.
// Entries with no task row were created outside this pipeline and are
// skipped. Reconciliations never overlap: the manager lock is single-flight.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.client.Snapshot(ctx)
	if err != nil {
		return err
	}

	for _, torrent := range snapshot {
		task, err := m.tasks.GetTask(ctx, torrent.Hash)
		if errors.Is(err, models.ErrTaskNotFound) {
			m.logger.Debug().Str("hash", torrent.Hash).Msg("torrent not tracked, downloaded manually")
			continue
		}
		if err != nil {
			return err
		}

		if task.Status == torrent.Status {
			continue
		}

		if err := m.tasks.UpdateTaskStatus(ctx, torrent.Hash, torrent.Status, torrent.FilePath()); err != nil {
			return err
		}

		for _, hook := range m.hooks {
			hook(torrent.Status, torrent)
		}
	}

	return nil
}
