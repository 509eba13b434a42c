// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orchestrator runs the daemon's long-lived loops: feed fetching,
// downloader reconciliation, and the rename-on-completion pipeline.
package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yelili422/bt/internal/downloader"
	"github.com/yelili422/bt/internal/models"
	"github.com/yelili422/bt/internal/notifications"
	"github.com/yelili422/bt/internal/renamer"
	"github.com/yelili422/bt/internal/rss"
)

const (
	pollInterval = 60 * time.Second
	itemThrottle = 200 * time.Millisecond
)

// Options are the daemon loop settings, usually mapped from command-line
// flags.
type Options struct {
	// FetchInterval is the pause between full passes over all enabled
	// subscriptions.
	FetchInterval time.Duration
	// ArchivedPath is the media-library root the renamer links into.
	ArchivedPath string
	// PathMapRule rewrites download paths from the downloader's filesystem
	// view to this process's, as "src:dst". Empty means identical views.
	PathMapRule string
	// SweepUnrenamed renames completed-but-unrenamed tasks left over from
	// earlier runs once at startup.
	SweepUnrenamed bool
}

// Orchestrator owns the fetch and poll loops and the completion hook.
type Orchestrator struct {
	rssStore *models.RssStore
	tasks    *models.TaskStore
	manager  *downloader.Manager
	filters  *rss.FilterMatcher
	notifier notifications.Notifier
	opts     Options
	logger   zerolog.Logger
}

func New(
	rssStore *models.RssStore,
	tasks *models.TaskStore,
	manager *downloader.Manager,
	filters *rss.FilterMatcher,
	notifier notifications.Notifier,
	opts Options,
	logger zerolog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		rssStore: rssStore,
		tasks:    tasks,
		manager:  manager,
		filters:  filters,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}

	manager.AddHook(func(status models.TaskStatus, torrent downloader.DownloadingTorrent) {
		if status != models.StatusCompleted {
			return
		}
		go o.handleCompleted(context.Background(), torrent.Hash, torrent.FilePath())
	})

	return o
}

// Run starts both loops and blocks until the context is cancelled. Loop
// iteration errors are logged, never propagated: one bad feed or an
// unreachable client must not bring the daemon down.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.opts.SweepUnrenamed {
		o.sweepUnrenamed(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.fetchLoop(ctx) })
	g.Go(func() error { return o.pollLoop(ctx) })
	return g.Wait()
}

func (o *Orchestrator) fetchLoop(ctx context.Context) error {
	log := o.logger.With().Str("module", "rss").Logger()
	log.Info().Dur("interval", o.opts.FetchInterval).Msg("rss fetch loop started")

	ticker := time.NewTicker(o.opts.FetchInterval)
	defer ticker.Stop()

	for {
		o.fetchAll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) fetchAll(ctx context.Context) {
	log := o.logger.With().Str("module", "rss").Logger()

	subs, err := o.rssStore.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list rss subscriptions")
		return
	}

	for _, sub := range subs {
		if !sub.Enabled {
			continue
		}
		if err := o.fetchOne(ctx, sub); err != nil {
			log.Error().Err(err).Str("url", sub.URL).Msg("failed to process rss feed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (o *Orchestrator) fetchOne(ctx context.Context, sub *models.Rss) error {
	log := o.logger.With().Str("module", "rss").Logger()

	feed, err := rss.Parse(ctx, sub, o.logger)
	if err != nil {
		return err
	}

	for _, item := range feed.Items {
		if err := o.dispatchItem(ctx, sub, &item); err != nil {
			log.Error().Err(err).Str("episode", bangumiInfoFromItem(&item).EpisodeLabel()).Msg("failed to dispatch item")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(itemThrottle):
		}
	}
	return nil
}

func (o *Orchestrator) dispatchItem(ctx context.Context, sub *models.Rss, item *rss.Item) error {
	log := o.logger.With().Str("module", "downloader").Logger()

	status, err := o.tasks.GetTaskStatusByURL(ctx, item.Torrent.URL)
	if err != nil && !errors.Is(err, models.ErrTaskNotFound) {
		return err
	}
	// Errored tasks fall through to the manager, which owns the retry
	// policy; everything else already tracked is a no-op.
	if err == nil && status != models.StatusError {
		return nil
	}

	if !o.filters.Admitted(ctx, sub.Filters, item) {
		log.Debug().Str("episode", bangumiInfoFromItem(item).EpisodeLabel()).Msg("item excluded by filter chain")
		return nil
	}

	ref := downloader.TorrentRef{URL: item.Torrent.URL}
	if item.Category != "" {
		ref.Category = item.Category
	}

	return o.manager.Dispatch(ctx, &sub.ID, ref, bangumiInfoFromItem(item))
}

// bangumiInfoFromItem freezes the renaming snapshot at dispatch time.
func bangumiInfoFromItem(item *rss.Item) *models.BangumiInfo {
	info := &models.BangumiInfo{
		ShowName: item.Title,
		Season:   item.Season,
		Episode:  item.Episode,
	}
	if item.EpisodeTitle != "" {
		episodeName := item.EpisodeTitle
		info.EpisodeName = &episodeName
	}
	if display := item.Fansub + item.MediaInfo; display != "" {
		info.DisplayName = &display
	}
	if item.Category != "" {
		category := item.Category
		info.Category = &category
	}
	return info
}

func (o *Orchestrator) pollLoop(ctx context.Context) error {
	log := o.logger.With().Str("module", "downloader").Logger()
	log.Info().Dur("interval", pollInterval).Msg("downloader poll loop started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := o.manager.Reconcile(ctx); err != nil {
			log.Error().Err(err).Msg("failed to reconcile downloader state")
		}
	}
}

// handleCompleted links a finished download into the library and fires the
// notification. It is idempotent: the renamed flag and the renamer's
// existing-target check both make repeats a no-op.
func (o *Orchestrator) handleCompleted(ctx context.Context, hash, downloadPath string) {
	log := o.logger.With().Str("module", "rename").Logger()

	renamed, err := o.tasks.IsRenamed(ctx, hash)
	if errors.Is(err, models.ErrTaskNotFound) {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("failed to read renamed flag")
		return
	}
	if renamed {
		return
	}

	info, err := o.tasks.GetBangumiInfo(ctx, hash)
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("failed to load bangumi info")
		return
	}
	if info == nil {
		return
	}

	src := renamer.ReplacePath(downloadPath, o.opts.PathMapRule)
	if err := renamer.Rename(info, src, o.opts.ArchivedPath, o.logger); err != nil {
		log.Error().Err(err).Str("hash", hash).Str("src", src).Msg("failed to rename download")
		return
	}

	if err := o.tasks.MarkRenamed(ctx, hash); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("failed to mark task renamed")
		return
	}

	if o.notifier != nil {
		o.notifier.DownloadFinished(info)
	}
}

// sweepUnrenamed retries the rename pipeline for completed tasks left
// unrenamed by earlier runs, e.g. after a crash between completion and
// linking.
func (o *Orchestrator) sweepUnrenamed(ctx context.Context) {
	log := o.logger.With().Str("module", "rename").Logger()

	tasks, err := o.tasks.ListUnrenamedCompleted(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list unrenamed tasks")
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Info().Int("count", len(tasks)).Msg("sweeping unrenamed completed tasks")
	for _, task := range tasks {
		if task.DownloadPath == nil {
			continue
		}
		o.handleCompleted(ctx, task.TorrentHash, *task.DownloadPath)
	}
}
