// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yelili422/bt/internal/api"
	"github.com/yelili422/bt/internal/database"
	"github.com/yelili422/bt/internal/domain"
	"github.com/yelili422/bt/internal/downloader"
	"github.com/yelili422/bt/internal/metainfo"
	"github.com/yelili422/bt/internal/models"
	"github.com/yelili422/bt/internal/notifications"
	"github.com/yelili422/bt/internal/orchestrator"
	"github.com/yelili422/bt/internal/rss"
)

func RunDaemonCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Background daemon operations",
	}

	cmd.AddCommand(runDaemonStartCommand(configFile))
	return cmd
}

func runDaemonStartCommand(configFile *string) *cobra.Command {
	var (
		interval       int
		archivedPath   string
		pathMapRule    string
		retryErrored   bool
		sweepUnrenamed bool
		listenAddr     string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the fetch, download and rename loops until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if archivedPath == "" {
				return errors.New("--archived-path is required")
			}

			cfg, err := domain.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			logger := setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.Open(ctx, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			rssStore := models.NewRssStore(db.DB, logger)
			taskStore := models.NewTaskStore(db.DB, logger)
			cache := metainfo.NewCache(logger)

			client, err := downloader.New(ctx, cfg.Downloader, cache, logger)
			if err != nil {
				return err
			}
			manager := downloader.NewManager(client, taskStore, cache, retryErrored, logger)

			notifier, err := notifications.New(cfg.Notification, logger)
			if err != nil {
				return err
			}

			orch := orchestrator.New(
				rssStore,
				taskStore,
				manager,
				rss.NewFilterMatcher(cache, logger),
				notifier,
				orchestrator.Options{
					FetchInterval:  time.Duration(interval) * time.Second,
					ArchivedPath:   archivedPath,
					PathMapRule:    pathMapRule,
					SweepUnrenamed: sweepUnrenamed,
				},
				logger,
			)

			server := api.NewServer(rssStore, cfg.ListenAddr, logger)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return orch.Run(ctx) })
			g.Go(func() error { return server.Run(ctx) })

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("daemon stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 300, "seconds between rss fetch passes")
	cmd.Flags().StringVarP(&archivedPath, "archived-path", "a", "", "media library root to link finished downloads into")
	cmd.Flags().StringVarP(&pathMapRule, "path-map", "m", "", "rewrite download paths as src:dst when the downloader runs elsewhere")
	cmd.Flags().BoolVar(&retryErrored, "retry-errored", true, "re-dispatch torrents whose previous attempt errored")
	cmd.Flags().BoolVar(&sweepUnrenamed, "sweep-unrenamed", true, "rename completed tasks left unrenamed by earlier runs at startup")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "http api listen address (overrides HTTP_LISTEN_ADDR)")

	return cmd
}
