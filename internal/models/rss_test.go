// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(t.Context(), `
		CREATE TABLE rss (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			url         TEXT    NOT NULL UNIQUE,
			title       TEXT,
			rss_type    TEXT    NOT NULL DEFAULT 'mikan',
			enabled     INTEGER NOT NULL DEFAULT 1,
			season      INTEGER,
			filters     TEXT,
			description TEXT,
			category    TEXT
		);

		CREATE TABLE download_task (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			rss_id        INTEGER,
			torrent_hash  TEXT    NOT NULL UNIQUE,
			torrent_url   TEXT    NOT NULL,
			start_time    TEXT    NOT NULL,
			status        TEXT    NOT NULL,
			show_name     TEXT    NOT NULL,
			episode_name  TEXT,
			display_name  TEXT,
			season        INTEGER NOT NULL DEFAULT 1,
			episode       INTEGER NOT NULL DEFAULT 1,
			category      TEXT,
			renamed       INTEGER NOT NULL DEFAULT 0,
			download_path TEXT
		);
	`)
	require.NoError(t, err)

	return db
}

func TestRssStoreInsertAndGet(t *testing.T) {
	store := NewRssStore(setupTestDB(t), zerolog.Nop())
	ctx := t.Context()

	title := "葬送的芙莉莲"
	season := 2
	category := "Bangumi"
	sub := &Rss{
		URL:     "https://mikanani.me/RSS/Bangumi?bangumiId=3141",
		Title:   &title,
		RssType: RssTypeMikan,
		Enabled: true,
		Season:  &season,
		Filters: FilterChain{
			{Type: FilterFilenameRegex, Pattern: "720p"},
			{Type: FilterFilenameRegex, Pattern: "繁体"},
		},
		Category: &category,
	}

	id, err := store.Insert(ctx, sub)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, sub.URL, got.URL)
	require.NotNil(t, got.Title)
	assert.Equal(t, title, *got.Title)
	assert.Equal(t, RssTypeMikan, got.RssType)
	assert.True(t, got.Enabled)
	require.NotNil(t, got.Season)
	assert.Equal(t, season, *got.Season)
	assert.Equal(t, sub.Filters, got.Filters)
	require.NotNil(t, got.Category)
	assert.Equal(t, category, *got.Category)
	assert.Nil(t, got.Description)
}

func TestRssStoreInsertDuplicateURL(t *testing.T) {
	store := NewRssStore(setupTestDB(t), zerolog.Nop())
	ctx := t.Context()

	first, err := store.Insert(ctx, &Rss{URL: "https://example.org/feed", RssType: RssTypeMikan, Enabled: true})
	require.NoError(t, err)

	second, err := store.Insert(ctx, &Rss{URL: "https://example.org/feed", RssType: RssTypeMikan, Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRssStoreListOrder(t *testing.T) {
	store := NewRssStore(setupTestDB(t), zerolog.Nop())
	ctx := t.Context()

	titleB := "b-show"
	titleA := "a-show"
	_, err := store.Insert(ctx, &Rss{URL: "https://example.org/1", RssType: RssTypeMikan, Enabled: false, Title: &titleA})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &Rss{URL: "https://example.org/2", RssType: RssTypeMikan, Enabled: true, Title: &titleB})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &Rss{URL: "https://example.org/3", RssType: RssTypeMikan, Enabled: true, Title: &titleA})
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Enabled rows first, then by title.
	assert.True(t, list[0].Enabled)
	assert.Equal(t, titleA, *list[0].Title)
	assert.True(t, list[1].Enabled)
	assert.Equal(t, titleB, *list[1].Title)
	assert.False(t, list[2].Enabled)
}

func TestRssStoreUpdate(t *testing.T) {
	store := NewRssStore(setupTestDB(t), zerolog.Nop())
	ctx := t.Context()

	id, err := store.Insert(ctx, &Rss{URL: "https://example.org/feed", RssType: RssTypeMikan, Enabled: true})
	require.NoError(t, err)

	title := "renamed"
	err = store.Update(ctx, id, &Rss{URL: "https://example.org/feed", RssType: RssTypeMikan, Enabled: false, Title: &title})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.Title)
	assert.Equal(t, title, *got.Title)

	err = store.Update(ctx, id+100, &Rss{URL: "https://example.org/other", RssType: RssTypeMikan})
	assert.ErrorIs(t, err, ErrRssNotFound)
}

func TestRssStoreDelete(t *testing.T) {
	store := NewRssStore(setupTestDB(t), zerolog.Nop())
	ctx := t.Context()

	id, err := store.Insert(ctx, &Rss{URL: "https://example.org/feed", RssType: RssTypeMikan, Enabled: true})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRssNotFound)

	assert.ErrorIs(t, store.Delete(ctx, id), ErrRssNotFound)
}

func TestParseRssType(t *testing.T) {
	parsed, err := ParseRssType("mikan")
	require.NoError(t, err)
	assert.Equal(t, RssTypeMikan, parsed)

	_, err = ParseRssType("nyaa")
	assert.Error(t, err)
}
