// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metainfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	cacheSize     = 100
	fetchTimeout  = 10 * time.Second
	fetchAttempts = 3
)

// TorrentInaccessibleError reports a .torrent URL that could not be
// fetched or parsed.
type TorrentInaccessibleError struct {
	URL string
	Err error
}

func (e *TorrentInaccessibleError) Error() string {
	return fmt.Sprintf("torrent inaccessible: %s: %v", e.URL, e.Err)
}

func (e *TorrentInaccessibleError) Unwrap() error { return e.Err }

// Cache is a bounded LRU from torrent-file URL to parsed metadata. A miss
// fetches the file over HTTP; concurrent misses for the same URL share one
// fetch.
type Cache struct {
	lru    *lru.Cache[string, *Meta]
	group  singleflight.Group
	client *http.Client
	logger zerolog.Logger
}

func NewCache(logger zerolog.Logger) *Cache {
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, *Meta](cacheSize)

	return &Cache{
		lru:    cache,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.With().Str("module", "downloader").Logger(),
	}
}

// Get returns the metadata for a torrent URL, fetching and caching it on a
// miss. Entries are immutable once inserted.
func (c *Cache) Get(ctx context.Context, url string) (*Meta, error) {
	if meta, ok := c.lru.Get(url); ok {
		return meta, nil
	}

	v, err, _ := c.group.Do(url, func() (interface{}, error) {
		// Re-check under the flight: a previous caller may have filled
		// the entry between our miss and this closure running.
		if meta, ok := c.lru.Get(url); ok {
			return meta, nil
		}

		raw, err := c.fetch(ctx, url)
		if err != nil {
			return nil, &TorrentInaccessibleError{URL: url, Err: err}
		}

		meta, err := Parse(raw)
		if err != nil {
			return nil, &TorrentInaccessibleError{URL: url, Err: err}
		}

		c.lru.Add(url, meta)
		c.logger.Debug().Str("url", url).Str("hash", meta.InfoHashHex()).Msg("cached torrent metadata")
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Meta), nil
}

// Put seeds the cache directly. Used by the dummy downloader and tests.
func (c *Cache) Put(url string, meta *Meta) {
	c.lru.Add(url, meta)
}

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("unexpected status: %s", resp.Status)
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
