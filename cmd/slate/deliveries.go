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

// deliveryEntry mirrors one archived delivery in the daemon's list
// response. The payload itself is never sent over the socket.
type deliveryEntry struct {
	ID          int64     `json:"id"`
	DeliveryID  string    `json:"delivery_id"`
	Event       string    `json:"event"`
	Action      string    `json:"action"`
	Repo        string    `json:"repo"`
	ReceivedAt  time.Time `json:"received_at"`
	PayloadSize int       `json:"payload_size"`
	Compression string    `json:"compression"`
	Sealed      bool      `json:"sealed"`
}

type deliveryListResult struct {
	Deliveries []deliveryEntry `json:"deliveries"`
}

func deliveriesCommand() *cli.Command {
	var conn connection
	var limit int

	return &cli.Command{
		Name:    "deliveries",
		Summary: "List archived webhook deliveries",
		Usage:   "slate deliveries [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("deliveries", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.IntVar(&limit, "limit", 50, "maximum entries, newest first")
			return flagSet
		},
		Run: func(args []string) error {
			var list deliveryListResult
			if err := conn.call("list-deliveries", map[string]any{"limit": limit}, &list); err != nil {
				return err
			}
			if len(list.Deliveries) == 0 {
				fmt.Println("no deliveries")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "DELIVERY\tEVENT\tACTION\tREPO\tRECEIVED\tBYTES\tSEALED\n")
			for _, entry := range list.Deliveries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%d\t%t\n",
					entry.DeliveryID,
					entry.Event,
					valueOr(entry.Action, "-"),
					valueOr(entry.Repo, "-"),
					entry.ReceivedAt.Local().Format(time.RFC3339),
					entry.PayloadSize,
					entry.Sealed,
				)
			}
			return writer.Flush()
		},
	}
}

func replayCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "replay",
		Summary: "Re-run the import for an archived delivery",
		Description: `Decode an archived webhook delivery and re-run its import. The
import re-fetches the issue from the API first, so replaying an old
delivery converges on current issue state rather than the snapshot in
the payload.`,
		Usage: "slate replay <delivery-id> [flags]",
		Examples: []cli.Example{
			{Command: "slate replay 6d6ab680-81b2-11ee-9a5c-1c83413a0d40"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate replay <delivery-id>")
			}

			var result importResult
			if err := conn.call("replay-delivery", map[string]any{"delivery_id": args[0]}, &result); err != nil {
				return err
			}
			printImport(result)
			return nil
		},
	}
}
