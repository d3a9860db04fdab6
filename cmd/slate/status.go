// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
)

// statusResult mirrors the daemon's status response.
type statusResult struct {
	Version       string     `json:"version"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	ArchiveSealed bool       `json:"archive_sealed"`
	Credentials   int        `json:"credentials"`
	Store         storeStats `json:"store"`
}

type storeStats struct {
	Boards     int64 `json:"boards"`
	Tasks      int64 `json:"tasks"`
	Mirrored   int64 `json:"mirrored_tasks"`
	Members    int64 `json:"members"`
	Deliveries int64 `json:"deliveries"`
}

func statusCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "status",
		Summary: "Show sync service status",
		Usage:   "slate status [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			var status statusResult
			if err := conn.call("status", nil, &status); err != nil {
				return err
			}

			uptime := time.Duration(status.UptimeSeconds) * time.Second

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "Version:\t%s\n", status.Version)
			fmt.Fprintf(writer, "Uptime:\t%s\n", uptime)
			fmt.Fprintf(writer, "Credentials:\t%d\n", status.Credentials)
			fmt.Fprintf(writer, "Archive sealed:\t%t\n", status.ArchiveSealed)
			fmt.Fprintf(writer, "Boards:\t%d\n", status.Store.Boards)
			fmt.Fprintf(writer, "Tasks:\t%d (%d mirrored)\n", status.Store.Tasks, status.Store.Mirrored)
			fmt.Fprintf(writer, "Members:\t%d\n", status.Store.Members)
			fmt.Fprintf(writer, "Deliveries:\t%d\n", status.Store.Deliveries)
			return writer.Flush()
		},
	}
}
