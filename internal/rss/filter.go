// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package rss

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
)

// FilterMatcher evaluates subscription filter chains against the canonical
// torrent name. The RSS-supplied title is not used because feeds and
// parsers are unreliable; the name declared inside the .torrent is.
type FilterMatcher struct {
	cache  *metainfo.Cache
	logger zerolog.Logger
}

func NewFilterMatcher(cache *metainfo.Cache, logger zerolog.Logger) *FilterMatcher {
	return &FilterMatcher{cache: cache, logger: logger.With().Str("module", "parser").Logger()}
}

// Admitted reports whether the chain admits the item: true iff no predicate
// matches the torrent's declared name. An empty chain admits everything.
// Bad patterns and metadata fetch failures are fail-open per predicate.
func (f *FilterMatcher) Admitted(ctx context.Context, chain models.FilterChain, item *Item) bool {
	if len(chain) == 0 {
		return true
	}

	meta, err := f.cache.Get(ctx, item.Torrent.URL)
	if err != nil {
		f.logger.Error().Err(err).Str("url", item.Torrent.URL).Msg("failed to get torrent name for filtering")
		return true
	}

	for _, filter := range chain {
		if f.matches(filter, meta.Name) {
			return false
		}
	}
	return true
}

func (f *FilterMatcher) matches(filter models.Filter, name string) bool {
	switch filter.Type {
	case models.FilterFilenameRegex:
		re, err := regexp.Compile(`(?i)` + filter.Pattern)
		if err != nil {
			f.logger.Error().Err(err).Str("pattern", filter.Pattern).Msg("invalid filter pattern")
			return false
		}
		return re.MatchString(name)
	default:
		f.logger.Error().Str("type", string(filter.Type)).Msg("unknown filter type")
		return false
	}
}
