// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/schema/task"
)

func memberCommand() *cli.Command {
	return &cli.Command{
		Name:    "member",
		Summary: "Manage member account links",
		Subcommands: []*cli.Command{
			memberLinkCommand(),
		},
	}
}

func memberLinkCommand() *cli.Command {
	var conn connection
	var orgID int64
	var github string

	return &cli.Command{
		Name:    "link",
		Summary: "Link a member to a GitHub account",
		Description: `Store a member's GitHub login so assignee changes sync in both
directions. An empty --github removes the link.`,
		Usage: "slate member link <member-id> --org ORG [flags]",
		Examples: []cli.Example{
			{Command: "slate member link 12 --org 1 --github octocat"},
			{
				Description: "Remove a link",
				Command:     `slate member link 12 --org 1 --github ""`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("link", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.Int64Var(&orgID, "org", 0, "member's organization ID")
			flagSet.StringVar(&github, "github", "", "GitHub login (empty to unlink)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate member link <member-id>")
			}
			memberID, err := parseID(args[0], "member id")
			if err != nil {
				return err
			}
			if orgID <= 0 {
				return fmt.Errorf("--org is required")
			}

			var member task.Member
			err = conn.call("link-member", map[string]any{
				"org_id":          orgID,
				"member_id":       memberID,
				"github_username": github,
			}, &member)
			if err != nil {
				return err
			}

			if member.GitHubUsername == "" {
				fmt.Printf("member %d (%s) unlinked\n", member.ID, member.DisplayName)
				return nil
			}
			fmt.Printf("member %d (%s) linked to %s\n",
				member.ID, member.DisplayName, member.GitHubUsername)
			return nil
		},
	}
}

type resolveResult struct {
	Member task.Member `json:"member"`
}

func resolveCommand() *cli.Command {
	var conn connection
	var orgID int64

	return &cli.Command{
		Name:    "resolve",
		Summary: "Resolve a GitHub login to a member",
		Description: `Look up which member a GitHub login resolves to, through stored
links and the account map file. Login matching is case-insensitive.`,
		Usage: "slate resolve <login> --org ORG [flags]",
		Examples: []cli.Example{
			{Command: "slate resolve octocat --org 1"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.Int64Var(&orgID, "org", 0, "organization to resolve within")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: slate resolve <login>")
			}
			if orgID <= 0 {
				return fmt.Errorf("--org is required")
			}

			var result resolveResult
			err := conn.call("resolve-account", map[string]any{
				"org_id":   orgID,
				"username": args[0],
			}, &result)
			if err != nil {
				return err
			}

			member := result.Member
			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "Member:\t%d\n", member.ID)
			fmt.Fprintf(writer, "Name:\t%s\n", member.DisplayName)
			if member.Email != "" {
				fmt.Fprintf(writer, "Email:\t%s\n", member.Email)
			}
			fmt.Fprintf(writer, "GitHub:\t%s\n", valueOr(member.GitHubUsername, "(account map)"))
			return writer.Flush()
		},
	}
}
