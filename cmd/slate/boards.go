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

type boardListResult struct {
	Boards []task.Board `json:"boards"`
}

func boardsCommand() *cli.Command {
	var conn connection

	return &cli.Command{
		Name:    "boards",
		Summary: "List boards and their sync bindings",
		Usage:   "slate boards [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("boards", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			var list boardListResult
			if err := conn.call("list-boards", nil, &list); err != nil {
				return err
			}
			if len(list.Boards) == 0 {
				fmt.Println("no boards")
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "ID\tNAME\tORG\tSYNC\tREPO\tPROJECT\tCREDENTIAL\n")
			for _, board := range list.Boards {
				sync := "off"
				if board.SyncEnabled {
					sync = "on"
				}
				project := "-"
				if board.ProjectNumber > 0 {
					project = strconv.Itoa(board.ProjectNumber)
				}
				fmt.Fprintf(writer, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
					board.ID,
					truncate(board.Name, 40),
					board.OrgID,
					sync,
					valueOr(board.Repo, "-"),
					project,
					valueOr(board.Credential, "-"),
				)
			}
			return writer.Flush()
		},
	}
}
