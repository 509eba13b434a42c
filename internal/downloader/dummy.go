// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
)

const defaultDummyRoot = "./data/dummy/downloads"

var _ Downloader = (*Dummy)(nil)

// Dummy is an in-memory downloader for development and tests. Dispatched
// torrents materialise as placeholder files under the root directory and
// complete immediately.
type Dummy struct {
	mu     sync.Mutex
	cache  *metainfo.Cache
	root   string
	list   []DownloadingTorrent
	logger zerolog.Logger
}

func NewDummy(cache *metainfo.Cache, root string, logger zerolog.Logger) *Dummy {
	if root == "" {
		root = defaultDummyRoot
	}
	return &Dummy{
		cache:  cache,
		root:   root,
		logger: logger.With().Str("module", "downloader").Logger(),
	}
}

func (d *Dummy) Dispatch(ctx context.Context, ref TorrentRef) error {
	meta, err := d.cache.Get(ctx, ref.URL)
	if err != nil {
		return err
	}

	category := ref.Category
	if category == "" {
		category = DefaultCategory
	}
	savePath := filepath.Join(d.root, category)
	path := filepath.Join(savePath, meta.Name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(savePath, 0o755); err != nil {
			return errors.Wrap(err, "create dummy download dir")
		}
		if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
			return errors.Wrap(err, "write dummy download")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	hash := meta.InfoHashHex()
	for _, t := range d.list {
		if t.Hash == hash {
			return nil
		}
	}

	d.list = append(d.list, DownloadingTorrent{
		Hash:     hash,
		Status:   models.StatusCompleted,
		SavePath: savePath,
		Name:     meta.Name,
	})
	d.logger.Debug().Str("hash", hash).Str("name", meta.Name).Msg("dummy downloader finished torrent")
	return nil
}

func (d *Dummy) Snapshot(_ context.Context) ([]DownloadingTorrent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := make([]DownloadingTorrent, len(d.list))
	copy(snapshot, d.list)
	return snapshot, nil
}

// SetStatus overrides the reported status of a dispatched torrent. Only
// useful in tests driving intermediate states.
func (d *Dummy) SetStatus(hash string, status models.TaskStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.list {
		if d.list[i].Hash == hash {
			d.list[i].Status = status
		}
	}
}
