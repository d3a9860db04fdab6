// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Command slate administers a running slate-github-service over its
// control socket: inspecting sync state, binding boards to
// repositories, linking member accounts, and triggering pushes,
// imports, and webhook installs.
package main

import (
	"fmt"
	"os"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that already printed their outcome return an
		// ExitError carrying only the desired exit code.
		if exitErr, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "slate",
		Summary: "Administer the Slate GitHub sync service",
		Description: `Slate keeps task boards and GitHub issues consistent in both
directions. This CLI talks to the sync daemon (slate-github-service)
over its control socket: it inspects state, binds boards to
repositories, links member accounts to GitHub logins, and triggers
pushes, imports, and webhook installs.

The socket path comes from --socket, or from the config file named by
--config or $SLATE_CONFIG, falling back to the default state
directory.`,
		Subcommands: []*cli.Command{
			statusCommand(),
			boardsCommand(),
			tasksCommand(),
			pushCommand(),
			importCommand(),
			boardCommand(),
			memberCommand(),
			resolveCommand(),
			deliveriesCommand(),
			replayCommand(),
			installWebhookCommand(),
			credentialCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}
