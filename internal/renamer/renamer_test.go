// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package renamer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelili422/bt/internal/models"
)

func stringPtr(s string) *string { return &s }

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		info models.BangumiInfo
		ext  string
		want string
	}{
		{
			name: "plain",
			info: models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7},
			ext:  "mkv",
			want: "Frieren/Season 1/Frieren S01E07.mkv",
		},
		{
			name: "with episode name",
			info: models.BangumiInfo{
				ShowName:    "Frieren",
				EpisodeName: stringPtr("冒险的终点"),
				Season:      1,
				Episode:     7,
			},
			ext:  "mkv",
			want: "Frieren/Season 1/Frieren S01E07 冒险的终点.mkv",
		},
		{
			name: "with display name",
			info: models.BangumiInfo{
				ShowName:    "Frieren",
				DisplayName: stringPtr("[LoliHouse][WebRip 1080p]"),
				Season:      1,
				Episode:     7,
			},
			ext:  "mkv",
			want: "Frieren/Season 1/Frieren S01E07 [LoliHouse][WebRip 1080p].mkv",
		},
		{
			name: "season unpadded episode padded",
			info: models.BangumiInfo{ShowName: "Show", Season: 12, Episode: 4},
			ext:  "mp4",
			want: "Show/Season 12/Show S12E04.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), Plan(&tt.info, tt.ext))
		})
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func TestRenameFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "[Sub] Frieren - 07 [1080p].mkv")
	writeFile(t, src)
	dstRoot := t.TempDir()

	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	require.NoError(t, Rename(info, src, dstRoot, zerolog.Nop()))

	linked := filepath.Join(dstRoot, "Frieren", "Season 1", "Frieren S01E07.mkv")
	data, err := os.ReadFile(linked)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestRenameIsIdempotent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ep.mkv")
	writeFile(t, src)
	dstRoot := t.TempDir()

	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	require.NoError(t, Rename(info, src, dstRoot, zerolog.Nop()))
	require.NoError(t, Rename(info, src, dstRoot, zerolog.Nop()))

	entries, err := os.ReadDir(filepath.Join(dstRoot, "Frieren", "Season 1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRenameDirectoryLinksImmediateChildren(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "movie.mkv"))
	writeFile(t, filepath.Join(srcDir, "subs.ass"))
	// Nested directories are skipped, not recursed into.
	writeFile(t, filepath.Join(srcDir, "extras", "interview.mkv"))

	dstRoot := t.TempDir()
	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	require.NoError(t, Rename(info, srcDir, dstRoot, zerolog.Nop()))

	seasonDir := filepath.Join(dstRoot, "Frieren", "Season 1")
	entries, err := os.ReadDir(seasonDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.FileExists(t, filepath.Join(seasonDir, "Frieren S01E07.mkv"))
	assert.FileExists(t, filepath.Join(seasonDir, "Frieren S01E07.ass"))
}

func TestRenameEmptyDirectory(t *testing.T) {
	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	assert.NoError(t, Rename(info, t.TempDir(), t.TempDir(), zerolog.Nop()))
}

func TestRenameMissingSource(t *testing.T) {
	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	err := Rename(info, filepath.Join(t.TempDir(), "nope.mkv"), t.TempDir(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestRenameSourceWithoutExtension(t *testing.T) {
	src := filepath.Join(t.TempDir(), "noext")
	writeFile(t, src)

	info := &models.BangumiInfo{ShowName: "Frieren", Season: 1, Episode: 7}
	err := Rename(info, src, t.TempDir(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoExtension)
}

func TestReplacePath(t *testing.T) {
	assert.Equal(t, "/downloads/bangumi/a.mkv", ReplacePath("/downloads/bangumi/a.mkv", ""))

	assert.Equal(t,
		filepath.FromSlash("/mnt/media/bangumi/a.mkv"),
		ReplacePath("/downloads/bangumi/a.mkv", "/downloads:/mnt/media"))

	// Paths outside the rule's source prefix pass through unchanged.
	assert.Equal(t, "/other/a.mkv", ReplacePath("/other/a.mkv", "/downloads:/mnt/media"))

	// A rule without a colon is ignored.
	assert.Equal(t, "/downloads/a.mkv", ReplacePath("/downloads/a.mkv", "/downloads"))
}
