// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slate-foundation/slate/lib/schema/task"
)

// Outcome classifies how a sync invocation ended.
type Outcome string

const (
	// OutcomeSynced means the operation ran and the core write
	// succeeded. Warnings may still be present for failed sub-steps.
	OutcomeSynced Outcome = "synced"

	// OutcomeSkipped means the operation decided there was nothing to
	// do: the task is not mirrored, sync is disabled, or the state is
	// unchanged since the last push. Skips make zero tracker calls.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means the core write did not happen.
	OutcomeFailed Outcome = "failed"
)

// SyncResult is the typed outcome of one sync invocation. Callers
// assert on the result; logs are a side channel, not the API.
type SyncResult struct {
	Outcome  Outcome  `json:"outcome"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ImportResult reports one inbound import: the task that now mirrors
// the issue and whether it was created by this import.
type ImportResult struct {
	Task     *task.Task `json:"task"`
	Created  bool       `json:"created"`
	Warnings []string   `json:"warnings,omitempty"`
}

// PushTrigger says why a push was requested. Mutation-triggered pushes
// are fingerprint-gated; manual pushes always reconcile.
type PushTrigger string

const (
	// TriggerMutation marks pushes scheduled by the dispatcher after
	// an internal task mutation.
	TriggerMutation PushTrigger = "mutation"

	// TriggerManual marks operator-requested pushes (socket
	// `push-task`). Manual pushes skip the fingerprint gate so an
	// operator can force reconciliation after external drift.
	TriggerManual PushTrigger = "manual"
)

// SyncEngine reconciles internal task state with mirrored GitHub
// issues in both directions. One engine serves all boards; per-board
// credentials select the tracker client.
type SyncEngine struct {
	store          *Store
	clients        map[string]trackerClient
	resolver       *AccountResolver
	logger         *slog.Logger
	projectItemCap int
	pushTimeout    time.Duration
}

// SyncEngineConfig holds the parameters for creating a sync engine.
type SyncEngineConfig struct {
	// Store is the task store. Required.
	Store *Store

	// Clients maps credential names (as referenced by board sync
	// configuration) to tracker clients. A board naming an absent
	// credential fails its pushes with a config-error reason.
	Clients map[string]trackerClient

	// Resolver maps members to GitHub logins and back. Required.
	Resolver *AccountResolver

	// Logger receives operational messages. Required.
	Logger *slog.Logger

	// ProjectItemCap bounds how many project items one sync scans
	// while locating the mirrored issue's item. Defaults to 1000.
	ProjectItemCap int

	// PushTimeout bounds one entire outbound push (all tracker calls
	// included). Zero means no engine-level bound; individual requests
	// are still bounded by the client's request timeout.
	PushTimeout time.Duration
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(cfg SyncEngineConfig) (*SyncEngine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("sync engine: Store is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("sync engine: Resolver is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("sync engine: Logger is required")
	}

	projectItemCap := cfg.ProjectItemCap
	if projectItemCap <= 0 {
		projectItemCap = 1000
	}

	return &SyncEngine{
		store:          cfg.Store,
		clients:        cfg.Clients,
		resolver:       cfg.Resolver,
		logger:         cfg.Logger,
		projectItemCap: projectItemCap,
		pushTimeout:    cfg.PushTimeout,
	}, nil
}

// client returns the tracker client for a board's credential.
func (e *SyncEngine) client(board *task.Board) (trackerClient, error) {
	client, ok := e.clients[board.Credential]
	if !ok {
		return nil, fmt.Errorf("board %d references unknown credential %q", board.ID, board.Credential)
	}
	return client, nil
}

// warningList accumulates non-fatal sub-step failures. Each warning is
// logged as it is recorded and carried on the final result.
type warningList struct {
	logger *slog.Logger
	items  []string
}

func (w *warningList) add(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	w.logger.Warn(message)
	w.items = append(w.items, message)
}

// reconcileStatusLabels makes the issue's label set contain the status
// label for status and no other member of the closed status-label set.
// Labels outside that set are untouched. If adding the target label
// fails, the label is created on the repository and the add retried
// once. Sub-step failures become warnings, never errors.
func reconcileStatusLabels(ctx context.Context, client trackerClient, owner, repo string, issueNumber int, status task.Status, warnings *warningList) {
	target := statusLabel(status)

	current, err := client.ListIssueLabels(ctx, owner, repo, issueNumber)
	if err != nil {
		warnings.add("listing labels on issue #%d: %v", issueNumber, err)
		return
	}

	present := false
	for _, label := range current {
		mapped, ok := statusForLabel(label.Name)
		if !ok {
			continue
		}
		if mapped == status {
			present = true
			continue
		}
		// A stale status label. Remove it so two statuses never
		// coexist on the issue.
		if err := client.RemoveIssueLabel(ctx, owner, repo, issueNumber, label.Name); err != nil {
			warnings.add("removing stale label %q from issue #%d: %v", label.Name, issueNumber, err)
		}
	}

	if present {
		return
	}

	addErr := client.AddIssueLabels(ctx, owner, repo, issueNumber, []string{target})
	if addErr == nil {
		return
	}
	// The usual add failure is a label that does not exist on the
	// repository yet. Create it and retry once.
	if createErr := client.CreateRepoLabel(ctx, owner, repo, target, statusLabelColor(status)); createErr != nil {
		warnings.add("adding label %q to issue #%d: %v (create fallback: %v)", target, issueNumber, addErr, createErr)
		return
	}
	if err := client.AddIssueLabels(ctx, owner, repo, issueNumber, []string{target}); err != nil {
		warnings.add("adding label %q to issue #%d after creating it: %v", target, issueNumber, err)
	}
}
