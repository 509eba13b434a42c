// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metainfo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetFetchesOnce(t *testing.T) {
	var hits atomic.Int64
	raw := encodeTorrent(t, v1Info())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(raw)
	}))
	defer server.Close()

	cache := NewCache(zerolog.Nop())

	first, err := cache.Get(t.Context(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "[Sub] Frieren - 07 [1080p].mkv", first.Name)

	second, err := cache.Get(t.Context(), server.URL)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCacheGetInaccessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	cache := NewCache(zerolog.Nop())

	_, err := cache.Get(t.Context(), server.URL)
	require.Error(t, err)

	var inaccessible *TorrentInaccessibleError
	assert.ErrorAs(t, err, &inaccessible)
	assert.Equal(t, server.URL, inaccessible.URL)
}

func TestCachePut(t *testing.T) {
	cache := NewCache(zerolog.Nop())

	meta, err := Parse(encodeTorrent(t, v1Info()))
	require.NoError(t, err)

	// No server behind this URL: a hit proves Put seeded the entry.
	cache.Put("https://example.invalid/a.torrent", meta)

	got, err := cache.Get(t.Context(), "https://example.invalid/a.torrent")
	require.NoError(t, err)
	assert.Same(t, meta, got)
}

func TestCacheEvictsOldest(t *testing.T) {
	cache := NewCache(zerolog.Nop())

	meta, err := Parse(encodeTorrent(t, v1Info()))
	require.NoError(t, err)

	for i := 0; i < cacheSize+1; i++ {
		cache.Put(fmt.Sprintf("https://example.invalid/%d.torrent", i), meta)
	}

	_, ok := cache.lru.Get("https://example.invalid/0.torrent")
	assert.False(t, ok, "oldest entry must be evicted past capacity")
	_, ok = cache.lru.Get(fmt.Sprintf("https://example.invalid/%d.torrent", cacheSize))
	assert.True(t, ok)
}
