// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/schema/task"
)

type taskListResult struct {
	Tasks []task.Task `json:"tasks"`
}

func tasksCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "tasks",
		Summary: "List a board's tasks",
		Usage:   "slate tasks <board-id> [flags]",
		Examples: []cli.Example{
			{Command: "slate tasks 3"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tasks", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate tasks <board-id>")
			}
			boardID, err := parseID(args[0], "board id")
			if err != nil {
				return err
			}

			var list taskListResult
			if err := conn.call("list-tasks", map[string]any{"board_id": boardID}, &list); err != nil {
				return err
			}
			if len(list.Tasks) == 0 {
				fmt.Println("no tasks")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "ID\tSTATUS\tISSUE\tASSIGNEE\tTITLE\n")
			for _, entry := range list.Tasks {
				issue := "-"
				if entry.IssueNumber > 0 {
					issue = "#" + strconv.Itoa(entry.IssueNumber)
				}
				assignee := "-"
				if entry.AssigneeID > 0 {
					assignee = strconv.FormatInt(entry.AssigneeID, 10)
				}
				fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
					entry.ID,
					entry.Status,
					issue,
					assignee,
					truncate(entry.Title, 60),
				)
			}
			return writer.Flush()
		},
	}
}
