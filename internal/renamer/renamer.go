// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package renamer materialises the media-library layout by hard-linking
// completed downloads under the archive root.
package renamer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/models"
)

var (
	ErrNotExist        = errors.New("rename source does not exist")
	ErrNoExtension     = errors.New("rename source has no extension")
	ErrUnsupportedType = errors.New("rename source is neither file nor directory")
	ErrLinkFailed      = errors.New("hard link failed")
)

// Plan returns the library-relative path for one episode file:
//
//	{show}/Season {n}/{show} S{nn}E{nn}[ {episode_name}][ {display_name}].{ext}
func Plan(info *models.BangumiInfo, extension string) string {
	name := info.EpisodeLabel()
	if info.EpisodeName != nil && *info.EpisodeName != "" {
		name += " " + *info.EpisodeName
	}
	if info.DisplayName != nil && *info.DisplayName != "" {
		name += " " + *info.DisplayName
	}

	return filepath.Join(
		info.ShowName,
		fmt.Sprintf("Season %d", info.Season),
		name+"."+extension,
	)
}

// Rename links src into the library under dstRoot. A file source is linked
// directly; a directory source links each immediate regular file child.
// Existing targets make the operation a successful no-op, so renaming is
// idempotent.
func Rename(info *models.BangumiInfo, src, dstRoot string, logger zerolog.Logger) error {
	log := logger.With().Str("module", "rename").Logger()

	stat, err := os.Stat(src)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrNotExist, src)
	}
	if err != nil {
		return err
	}

	switch {
	case stat.Mode().IsRegular():
		return linkOne(info, src, dstRoot, log)

	case stat.IsDir():
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := linkOne(info, filepath.Join(src, entry.Name()), dstRoot, log); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.Wrap(ErrUnsupportedType, src)
	}
}

func linkOne(info *models.BangumiInfo, src, dstRoot string, log zerolog.Logger) error {
	ext := strings.TrimPrefix(filepath.Ext(src), ".")
	if ext == "" {
		return errors.Wrap(ErrNoExtension, src)
	}

	dst := filepath.Join(dstRoot, Plan(info, ext))
	if _, err := os.Stat(dst); err == nil {
		log.Debug().Str("dst", dst).Msg("target already exists, skipping link")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(ErrLinkFailed, "create %s: %v", filepath.Dir(dst), err)
	}
	if err := os.Link(src, dst); err != nil {
		return errors.Wrapf(ErrLinkFailed, "link %s -> %s: %v", src, dst, err)
	}

	log.Info().Str("src", src).Str("dst", dst).Msg("linked episode into library")
	return nil
}

// ReplacePath rewrites the path prefix according to a "src:dst" rule,
// translating the downloader's filesystem view into the renamer's. An
// empty rule returns the path unchanged.
func ReplacePath(path, rule string) string {
	if rule == "" {
		return path
	}

	src, dst, found := strings.Cut(rule, ":")
	if !found {
		return path
	}

	rel, err := filepath.Rel(src, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.Join(dst, rel)
}
