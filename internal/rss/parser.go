// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rss fetches subscription feeds and extracts structured episode
// items from their free-form titles.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/models"
)

const fetchTimeout = 10 * time.Second

// Torrent points at the .torrent resource advertised by a feed item.
type Torrent struct {
	URL           string
	ContentLength int64
	PubDate       string
}

// Item is one parsed feed entry, carrying enough metadata to dispatch a
// torrent and name the resulting media file.
type Item struct {
	URL          string
	Title        string
	EpisodeTitle string
	Season       int
	Episode      int
	Fansub       string
	MediaInfo    string
	Category     string
	Torrent      Torrent
}

// Feed is the decoded collection of items from one subscription.
type Feed struct {
	URL         string
	Description string
	Items       []Item
}

// Parser decodes a feed body into items, applying subscription overrides.
type Parser interface {
	ParseContent(sub *models.Rss, content []byte) (*Feed, error)
}

// DownloadFailedError reports an HTTP or timeout failure fetching a feed.
type DownloadFailedError struct {
	URL string
	Err error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("rss download failed: %s: %v", e.URL, e.Err)
}

func (e *DownloadFailedError) Unwrap() error { return e.Err }

// InvalidRssError reports malformed XML or an unsupported channel shape.
type InvalidRssError struct {
	Err error
}

func (e *InvalidRssError) Error() string {
	return fmt.Sprintf("invalid rss: %v", e.Err)
}

func (e *InvalidRssError) Unwrap() error { return e.Err }

// UnrecognizedEpisodeError reports a single item title that matched neither
// grammar. It is logged and skipped, never propagated past the item.
type UnrecognizedEpisodeError struct {
	Title string
}

func (e *UnrecognizedEpisodeError) Error() string {
	return fmt.Sprintf("unrecognized episode title: %q", e.Title)
}

// ParserFor selects the parser variant for a subscription.
func ParserFor(rssType models.RssType, logger zerolog.Logger) (Parser, error) {
	switch rssType {
	case models.RssTypeMikan:
		return NewMikanParser(logger), nil
	default:
		return nil, fmt.Errorf("no parser for rss type %q", rssType)
	}
}

var feedClient = &http.Client{Timeout: fetchTimeout}

// Fetch downloads the raw feed body.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadFailedError{URL: url, Err: err}
	}

	resp, err := feedClient.Do(req)
	if err != nil {
		return nil, &DownloadFailedError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadFailedError{URL: url, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadFailedError{URL: url, Err: err}
	}
	return body, nil
}

// Parse fetches and decodes the feed of a subscription.
func Parse(ctx context.Context, sub *models.Rss, logger zerolog.Logger) (*Feed, error) {
	parser, err := ParserFor(sub.RssType, logger)
	if err != nil {
		return nil, err
	}

	body, err := Fetch(ctx, sub.URL)
	if err != nil {
		return nil, err
	}
	return parser.ParseContent(sub, body)
}
