// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
)

// syncResult mirrors the daemon's push response.
type syncResult struct {
	Outcome  string   `json:"outcome"`
	Reason   string   `json:"reason"`
	Warnings []string `json:"warnings"`
}

func pushCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "push",
		Summary: "Push a task's state to its mirrored issue",
		Description: `Run one manual push for a task. Manual pushes skip the
state-unchanged check, so a push always reconciles the issue with the
task — use it to repair drift after failed or missed automatic
pushes.

Exits 1 when the push fails.`,
		Usage: "slate push <task-id> [flags]",
		Examples: []cli.Example{
			{Command: "slate push 42"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("push", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate push <task-id>")
			}
			taskID, err := parseID(args[0], "task id")
			if err != nil {
				return err
			}

			var result syncResult
			if err := conn.call("push-task", map[string]any{"task_id": taskID}, &result); err != nil {
				return err
			}
			printWarnings(result.Warnings)

			if result.Reason != "" {
				fmt.Printf("task %d: %s (%s)\n", taskID, result.Outcome, result.Reason)
			} else {
				fmt.Printf("task %d: %s\n", taskID, result.Outcome)
			}
			if result.Outcome == "failed" {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
