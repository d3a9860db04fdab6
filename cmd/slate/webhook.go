// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
)

type installWebhookResult struct {
	HookID int64  `json:"hook_id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

func installWebhookCommand() *cli.Command {
	var conn connection
	var publicURL string

	return &cli.Command{
		Name:    "install-webhook",
		Summary: "Create the issues webhook on a board's repository",
		Description: `Create the GitHub webhook that delivers issues events for a bound
board to this daemon's listener. The hook is configured for issues
events with JSON payloads, signed with the daemon's webhook secret.
Installing again for the same URL updates the existing hook instead of
creating a duplicate.`,
		Usage: "slate install-webhook <board-id> --url URL [flags]",
		Examples: []cli.Example{
			{Command: "slate install-webhook 3 --url https://slate.example.com/webhook"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("install-webhook", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringVar(&publicURL, "url", "", "public URL of the daemon's webhook listener")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate install-webhook <board-id>")
			}
			boardID, err := parseID(args[0], "board id")
			if err != nil {
				return err
			}
			if publicURL == "" {
				return fmt.Errorf("--url is required")
			}

			var result installWebhookResult
			err = conn.call("install-webhook", map[string]any{
				"board_id":   boardID,
				"public_url": publicURL,
			}, &result)
			if err != nil {
				return err
			}

			state := "inactive"
			if result.Active {
				state = "active"
			}
			fmt.Printf("webhook %d installed (%s): %s\n", result.HookID, state, result.URL)
			return nil
		},
	}
}
