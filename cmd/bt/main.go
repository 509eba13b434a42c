// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yelili422/bt/internal/domain"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bt",
		Short: "Anime RSS download and library management daemon",
		Long:  "bt watches RSS subscriptions, dispatches new episodes to a BitTorrent client, and links finished downloads into a media library.",
	}

	var configFile string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (environment variables take effect without one)")

	rootCmd.AddCommand(RunDaemonCommand(&configFile))
	rootCmd.AddCommand(RunRssCommand(&configFile))
	rootCmd.AddCommand(RunTorrentCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger builds the process logger from configuration: console output
// always, plus a rotated file when LOG_PATH is set.
func setupLogger(cfg *domain.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if cfg.LogPath != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    10, // MB
			MaxBackups: 3,
			Compress:   true,
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
