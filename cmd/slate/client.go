// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/slate-foundation/slate/lib/config"
	"github.com/slate-foundation/slate/lib/service"
)

// callTimeout bounds one control-socket call. Push, import, and
// replay reach the GitHub API from inside the daemon, so this sits
// well above the daemon's per-push timeout.
const callTimeout = 2 * time.Minute

// connection resolves which daemon control socket a command talks to:
// --socket wins, then the socket path from --config or $SLATE_CONFIG,
// then the default state directory.
type connection struct {
	socketPath string
	configPath string
}

// AddFlags registers the shared connection flags on a command's flag
// set.
func (c *connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", "", "daemon control socket (overrides config)")
	flagSet.StringVar(&c.configPath, "config", "", "slate config file (defaults to $SLATE_CONFIG)")
}

func (c *connection) resolveSocketPath() (string, error) {
	if c.socketPath != "" {
		return c.socketPath, nil
	}
	switch {
	case c.configPath != "":
		cfg, err := config.LoadFile(c.configPath)
		if err != nil {
			return "", err
		}
		return cfg.State.Socket, nil
	case os.Getenv("SLATE_CONFIG") != "":
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.State.Socket, nil
	}
	return config.Default().State.Socket, nil
}

// call runs one action against the daemon with the standard timeout.
func (c *connection) call(action string, fields map[string]any, result any) error {
	socketPath, err := c.resolveSocketPath()
	if err != nil {
		return err
	}
	client := service.NewServiceClient(socketPath)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return client.Call(ctx, action, fields, result)
}

// parseID parses a positional numeric identifier.
func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, value)
	}
	return id, nil
}

// printWarnings writes sync warnings to stderr, keeping stdout clean
// for the command's own output.
func printWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
}

// valueOr substitutes placeholder for an empty table cell.
func valueOr(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}

// truncate shortens s to at most maxLength bytes, appending "..."
// when cut.
func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
