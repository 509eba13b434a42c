// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yelili422/bt/internal/metainfo"
)

func RunTorrentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torrent",
		Short: "Inspect torrent files",
	}

	cmd.AddCommand(runTorrentHashCommand())
	return cmd
}

func runTorrentHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the info-hash of a torrent file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			meta, err := metainfo.Parse(raw)
			if err != nil {
				return err
			}

			cmd.Println(meta.InfoHashHex())
			return nil
		},
	}
}
