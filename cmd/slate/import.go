// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/schema/task"
)

// importResult mirrors the daemon's import and replay responses.
type importResult struct {
	Task     *task.Task `json:"task"`
	Created  bool       `json:"created"`
	Warnings []string   `json:"warnings"`
}

func importCommand() *cli.Command {
	var conn connection
	var repo string
	var boardID int64

	return &cli.Command{
		Name:    "import",
		Summary: "Import a GitHub issue as a task",
		Description: `Fetch one issue from GitHub and create or update the task that
mirrors it. The target board is named by --board, or found from the
board bound to --repo.`,
		Usage: "slate import <issue-number> [flags]",
		Examples: []cli.Example{
			{Command: "slate import 128 --repo acme/platform"},
			{
				Description: "Import into a specific board",
				Command:     "slate import 128 --board 3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringVar(&repo, "repo", "", "repository (owner/name) whose bound board receives the task")
			flagSet.Int64Var(&boardID, "board", 0, "board ID (alternative to --repo)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate import <issue-number>")
			}
			issueNumber, err := parseID(args[0], "issue number")
			if err != nil {
				return err
			}
			if repo == "" && boardID <= 0 {
				return fmt.Errorf("one of --repo or --board is required")
			}

			fields := map[string]any{"issue_number": issueNumber}
			if repo != "" {
				fields["repo"] = repo
			}
			if boardID > 0 {
				fields["board_id"] = boardID
			}

			var result importResult
			if err := conn.call("import-issue", fields, &result); err != nil {
				return err
			}
			printImport(result)
			return nil
		},
	}
}

// printImport renders an import or replay outcome.
func printImport(result importResult) {
	printWarnings(result.Warnings)
	verb := "updated"
	if result.Created {
		verb = "created"
	}
	fmt.Printf("task %d %s (issue #%d, status %s)\n",
		result.Task.ID, verb, result.Task.IssueNumber, result.Task.Status)
}
