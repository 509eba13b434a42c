// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yelili422/bt/internal/database"
	"github.com/yelili422/bt/internal/domain"
	"github.com/yelili422/bt/internal/models"
	"github.com/yelili422/bt/internal/rss"
)

func RunRssCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rss",
		Short: "Manage RSS subscriptions",
	}

	cmd.AddCommand(runRssFeedCommand())
	cmd.AddCommand(runRssAddCommand(configFile))
	cmd.AddCommand(runRssListCommand(configFile))
	cmd.AddCommand(runRssDeleteCommand(configFile))
	return cmd
}

// openStore loads configuration and opens the database for one-shot CLI
// commands.
func openStore(ctx context.Context, configFile *string) (*database.DB, *models.RssStore, error) {
	cfg, err := domain.LoadConfig(*configFile)
	if err != nil {
		return nil, nil, err
	}

	logger := setupLogger(cfg)
	db, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}

	return db, models.NewRssStore(db.DB, logger), nil
}

func runRssFeedCommand() *cobra.Command {
	var rssType string

	cmd := &cobra.Command{
		Use:   "feed <url>",
		Short: "Fetch a feed and print the episodes it would dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedType, err := models.ParseRssType(rssType)
			if err != nil {
				return err
			}

			cfg, err := domain.LoadConfig("")
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)

			sub := &models.Rss{URL: args[0], RssType: parsedType}
			feed, err := rss.Parse(cmd.Context(), sub, logger)
			if err != nil {
				return err
			}

			for _, item := range feed.Items {
				cmd.Printf("%s S%02dE%02d\t%s\n", item.Title, item.Season, item.Episode, item.Torrent.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rssType, "type", "mikan", "feed dialect")
	return cmd
}

func runRssAddCommand(configFile *string) *cobra.Command {
	var (
		rssType  string
		title    string
		season   int
		category string
		filters  []string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add an RSS subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedType, err := models.ParseRssType(rssType)
			if err != nil {
				return err
			}

			db, store, err := openStore(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			sub := &models.Rss{
				URL:     args[0],
				RssType: parsedType,
				Enabled: !disabled,
			}
			if title != "" {
				sub.Title = &title
			}
			if season > 0 {
				sub.Season = &season
			}
			if category != "" {
				sub.Category = &category
			}
			for _, pattern := range filters {
				sub.Filters = append(sub.Filters, models.Filter{
					Type:    models.FilterFilenameRegex,
					Pattern: pattern,
				})
			}

			id, err := store.Insert(cmd.Context(), sub)
			if err != nil {
				return err
			}

			cmd.Printf("Added subscription %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&rssType, "type", "mikan", "feed dialect")
	cmd.Flags().StringVar(&title, "title", "", "override the show title from the feed")
	cmd.Flags().IntVar(&season, "season", 0, "override the season number from the feed")
	cmd.Flags().StringVar(&category, "category", "", "category forwarded to the downloader")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "exclude items whose torrent name matches this regex (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the subscription without enabling it")

	return cmd
}

func runRssListCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List RSS subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, store, err := openStore(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, sub := range list {
				state := "enabled"
				if !sub.Enabled {
					state = "disabled"
				}
				title := ""
				if sub.Title != nil {
					title = *sub.Title
				}
				cmd.Printf("%d\t%s\t%s\t%s\t%s\n", sub.ID, state, sub.RssType, title, sub.URL)
			}
			return nil
		},
	}
}

func runRssDeleteCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an RSS subscription, keeping its download history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.New("id must be an integer")
			}

			db, store, err := openStore(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}

			cmd.Printf("Deleted subscription %d\n", id)
			return nil
		},
	}
}
