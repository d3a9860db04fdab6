// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/schema/task"
)

func boardCommand() *cli.Command {
	return &cli.Command{
		Name:    "board",
		Summary: "Create and bind boards",
		Subcommands: []*cli.Command{
			boardCreateCommand(),
			boardBindCommand(),
		},
	}
}

type boardCreateResult struct {
	Board   task.Board    `json:"board"`
	Columns []task.Column `json:"columns"`
}

func boardCreateCommand() *cli.Command {
	var conn connection
	var orgID int64
	var name string
	var columns []string

	return &cli.Command{
		Name:    "create",
		Summary: "Create a board",
		Description: `Create a board. Without --column the board gets one column per
canonical status (Todo through Blocked). Each --column is
"NAME=STATUS", ordered left to right.`,
		Usage: "slate board create --org ORG --name NAME [flags]",
		Examples: []cli.Example{
			{Command: "slate board create --org 1 --name Roadmap"},
			{
				Description: "Two custom columns",
				Command:     `slate board create --org 1 --name Lean --column "Inbox=todo" --column "Shipped=done"`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.Int64Var(&orgID, "org", 0, "owning organization ID")
			flagSet.StringVar(&name, "name", "", "board display name")
			flagSet.StringArrayVar(&columns, "column", nil, `column as "NAME=STATUS", repeatable`)
			return flagSet
		},
		Run: func(args []string) error {
			if orgID <= 0 {
				return fmt.Errorf("--org is required")
			}
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			fields := map[string]any{"org_id": orgID, "name": name}
			if len(columns) > 0 {
				parsed := make([]map[string]any, 0, len(columns))
				for _, column := range columns {
					columnName, status, found := strings.Cut(column, "=")
					if !found || columnName == "" || status == "" {
						return fmt.Errorf(`invalid column %q, want "NAME=STATUS"`, column)
					}
					parsed = append(parsed, map[string]any{
						"name":   columnName,
						"status": status,
					})
				}
				fields["columns"] = parsed
			}

			var result boardCreateResult
			if err := conn.call("create-board", fields, &result); err != nil {
				return err
			}
			fmt.Printf("board %d (%s) created with %d columns\n",
				result.Board.ID, result.Board.Name, len(result.Columns))
			return nil
		},
	}
}

func boardBindCommand() *cli.Command {
	var conn connection
	var repo, credential string
	var project int
	var sync bool

	return &cli.Command{
		Name:    "bind",
		Summary: "Bind a board to a repository and credential",
		Description: `Set a board's sync binding. The binding replaces all four fields
— repository, project number, credential, and the sync switch — so
repeat the ones that should stay. Binding with no flags clears it.`,
		Usage: "slate board bind <board-id> [flags]",
		Examples: []cli.Example{
			{Command: "slate board bind 3 --repo acme/platform --project 7 --credential acme --sync"},
			{
				Description: "Disable sync, keeping the repository binding",
				Command:     "slate board bind 3 --repo acme/platform --credential acme",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("bind", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringVar(&repo, "repo", "", "mirrored repository (owner/name)")
			flagSet.IntVar(&project, "project", 0, "GitHub Projects board number (0 for none)")
			flagSet.StringVar(&credential, "credential", "", "credential name from the service configuration")
			flagSet.BoolVar(&sync, "sync", false, "enable outbound and inbound sync")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate board bind <board-id>")
			}
			boardID, err := parseID(args[0], "board id")
			if err != nil {
				return err
			}

			var board task.Board
			err = conn.call("bind-board", map[string]any{
				"board_id":       boardID,
				"repo":           repo,
				"project_number": project,
				"credential":     credential,
				"sync_enabled":   sync,
			}, &board)
			if err != nil {
				return err
			}

			projectCell := "-"
			if board.ProjectNumber > 0 {
				projectCell = strconv.Itoa(board.ProjectNumber)
			}
			syncCell := "off"
			if board.SyncEnabled {
				syncCell = "on"
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "Board:\t%d (%s)\n", board.ID, board.Name)
			fmt.Fprintf(writer, "Repo:\t%s\n", valueOr(board.Repo, "-"))
			fmt.Fprintf(writer, "Project:\t%s\n", projectCell)
			fmt.Fprintf(writer, "Credential:\t%s\n", valueOr(board.Credential, "-"))
			fmt.Fprintf(writer, "Sync:\t%s\n", syncCell)
			return writer.Flush()
		},
	}
}
