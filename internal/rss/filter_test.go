// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package rss

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
)

func seededMatcher(t *testing.T, url, name string) *FilterMatcher {
	t.Helper()

	cache := metainfo.NewCache(zerolog.Nop())
	cache.Put(url, &metainfo.Meta{Name: name})
	return NewFilterMatcher(cache, zerolog.Nop())
}

func TestFilterAdmittedEmptyChain(t *testing.T) {
	matcher := NewFilterMatcher(metainfo.NewCache(zerolog.Nop()), zerolog.Nop())

	// An empty chain admits without touching the torrent at all.
	item := &Item{Torrent: Torrent{URL: "https://example.invalid/a.torrent"}}
	assert.True(t, matcher.Admitted(t.Context(), nil, item))
}

func TestFilterExcludesOnMatch(t *testing.T) {
	const url = "https://example.org/a.torrent"
	matcher := seededMatcher(t, url, "[Sub] Frieren - 07 [720p].mkv")

	item := &Item{Torrent: Torrent{URL: url}}
	chain := models.FilterChain{{Type: models.FilterFilenameRegex, Pattern: "720p"}}
	assert.False(t, matcher.Admitted(t.Context(), chain, item))
}

func TestFilterMatchIsCaseInsensitive(t *testing.T) {
	const url = "https://example.org/a.torrent"
	matcher := seededMatcher(t, url, "[Sub] Frieren - 07 [WebRip 1080P].mkv")

	item := &Item{Torrent: Torrent{URL: url}}
	chain := models.FilterChain{{Type: models.FilterFilenameRegex, Pattern: "webrip"}}
	assert.False(t, matcher.Admitted(t.Context(), chain, item))
}

func TestFilterAdmitsOnNoMatch(t *testing.T) {
	const url = "https://example.org/a.torrent"
	matcher := seededMatcher(t, url, "[Sub] Frieren - 07 [1080p].mkv")

	item := &Item{Torrent: Torrent{URL: url}}
	chain := models.FilterChain{
		{Type: models.FilterFilenameRegex, Pattern: "720p"},
		{Type: models.FilterFilenameRegex, Pattern: "繁体"},
	}
	assert.True(t, matcher.Admitted(t.Context(), chain, item))
}

func TestFilterBadPatternAdmits(t *testing.T) {
	const url = "https://example.org/a.torrent"
	matcher := seededMatcher(t, url, "anything")

	item := &Item{Torrent: Torrent{URL: url}}
	chain := models.FilterChain{{Type: models.FilterFilenameRegex, Pattern: "("}}
	assert.True(t, matcher.Admitted(t.Context(), chain, item))
}

func TestFilterFailsOpenWhenTorrentInaccessible(t *testing.T) {
	matcher := NewFilterMatcher(metainfo.NewCache(zerolog.Nop()), zerolog.Nop())

	item := &Item{Torrent: Torrent{URL: "https://unresolvable.invalid/a.torrent"}}
	chain := models.FilterChain{{Type: models.FilterFilenameRegex, Pattern: ".*"}}
	assert.True(t, matcher.Admitted(t.Context(), chain, item))
}

func TestFilterUnknownTypeAdmits(t *testing.T) {
	const url = "https://example.org/a.torrent"
	matcher := seededMatcher(t, url, "anything")

	item := &Item{Torrent: Torrent{URL: url}}
	chain := models.FilterChain{{Type: models.FilterType("size_limit"), Pattern: "1"}}
	assert.True(t, matcher.Admitted(t.Context(), chain, item))
}
