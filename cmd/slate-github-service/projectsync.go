// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slate-foundation/slate/lib/github"
	"github.com/slate-foundation/slate/lib/schema/task"
)

// projectItemPageSize is the GraphQL page size used while scanning a
// project for the mirrored issue's item. The scan is bounded by the
// engine's ProjectItemCap; items beyond the cap are unreachable and
// would be re-added, so the cap should exceed the board size.
const projectItemPageSize = 100

// SyncProjectField ensures the board's configured project contains an
// item for the mirrored issue and that the item's single-select
// "Status" field equals status. Standalone entry point for the socket
// API and tests; the outbound push uses the node-ID variant directly.
//
// Hard errors (project not found, missing credential scope) are
// returned; a vanished issue is a skip, not an error.
func (e *SyncEngine) SyncProjectField(ctx context.Context, board *task.Board, status task.Status, issueNumber int) (*SyncResult, error) {
	if board.ProjectNumber <= 0 {
		return &SyncResult{Outcome: OutcomeSkipped, Reason: "board has no project configured"}, nil
	}
	client, err := e.client(board)
	if err != nil {
		return nil, err
	}
	owner, repoName, err := board.RepoParts()
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("board_id", board.ID, "issue", issueNumber)
	warnings := &warningList{logger: logger}

	issue, err := client.GetIssue(ctx, owner, repoName, issueNumber)
	if err != nil {
		if github.IsNotFound(err) {
			logger.Warn("issue gone from tracker, skipping project sync")
			return &SyncResult{Outcome: OutcomeSkipped, Reason: "issue not found on tracker"}, nil
		}
		return nil, fmt.Errorf("fetching issue #%d: %w", issueNumber, err)
	}

	result, err := e.syncProjectWithNode(ctx, client, owner, repoName, board.ProjectNumber, status, issueNumber, issue.NodeID, warnings)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// syncProjectWithNode runs the project-field synchronization given an
// already-resolved issue node ID.
//
// The project is resolved by number with the owner tried as a user
// first, then as an organization. A project that neither owns is a
// hard error; so is a credential that lacks the project scope — the
// two are distinguished because the fixes differ (configuration vs.
// credential).
func (e *SyncEngine) syncProjectWithNode(ctx context.Context, client trackerClient, owner, repoName string, projectNumber int, status task.Status, issueNumber int, nodeID string, warnings *warningList) (*SyncResult, error) {
	project, err := client.ProjectByNumber(ctx, owner, projectNumber)
	if err != nil {
		if errors.Is(err, github.ErrMissingScope) {
			return nil, fmt.Errorf("credential cannot read projects (reconnect it with the project scope): %w", err)
		}
		return nil, fmt.Errorf("resolving project %d for %q: %w", projectNumber, owner, err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %d not found for %q (checked user and organization)", projectNumber, owner)
	}

	statusField := e.findStatusField(ctx, client, project.ID, warnings)

	itemID, err := e.findProjectItem(ctx, client, project.ID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("scanning project %d items: %w", projectNumber, err)
	}

	if itemID == "" {
		// The issue is not on the board yet. Add it, set the field on
		// the fresh item, and reconcile the status labels so the
		// board value and the labels agree even when this path runs
		// without the outbound updater.
		itemID, err = client.AddProjectItem(ctx, project.ID, nodeID)
		if err != nil {
			return nil, fmt.Errorf("adding issue #%d to project %d: %w", issueNumber, projectNumber, err)
		}
		e.setStatusOption(ctx, client, project.ID, itemID, statusField, status, warnings)
		reconcileStatusLabels(ctx, client, owner, repoName, issueNumber, status, warnings)
		e.logger.Info("added issue to project",
			"issue", issueNumber,
			"project", projectNumber,
			"status", string(status),
		)
		return &SyncResult{Outcome: OutcomeSynced, Warnings: warnings.items}, nil
	}

	e.setStatusOption(ctx, client, project.ID, itemID, statusField, status, warnings)
	return &SyncResult{Outcome: OutcomeSynced, Warnings: warnings.items}, nil
}

// findStatusField locates the project's single-select field named
// "Status" (case-insensitive). A project without one is tolerated:
// items can still be added, they just carry no status value.
func (e *SyncEngine) findStatusField(ctx context.Context, client trackerClient, projectID string, warnings *warningList) *github.ProjectField {
	fields, err := client.ProjectFields(ctx, projectID)
	if err != nil {
		warnings.add("listing project fields: %v", err)
		return nil
	}
	for i := range fields {
		if strings.EqualFold(fields[i].Name, "Status") {
			return &fields[i]
		}
	}
	warnings.add("project has no single-select \"Status\" field")
	return nil
}

// findProjectItem scans the project's items for the one whose content
// is the given issue node. Returns "" when no item matches within the
// engine's item cap.
func (e *SyncEngine) findProjectItem(ctx context.Context, client trackerClient, projectID, nodeID string) (string, error) {
	cursor := ""
	scanned := 0
	for scanned < e.projectItemCap {
		pageSize := projectItemPageSize
		if remaining := e.projectItemCap - scanned; remaining < pageSize {
			pageSize = remaining
		}

		page, err := client.ProjectItemsPage(ctx, projectID, cursor, pageSize)
		if err != nil {
			return "", err
		}
		for _, item := range page.Items {
			if item.ContentNodeID == nodeID {
				return item.ID, nil
			}
		}

		scanned += len(page.Items)
		if !page.HasNextPage || len(page.Items) == 0 {
			break
		}
		cursor = page.EndCursor
	}
	return "", nil
}

// setStatusOption sets the item's status field to the option mapped
// from status. The option is resolved by exact name first, then
// case-insensitively; a board whose options do not include the mapped
// name is outside this engine's control, so that is a warning and the
// mutation is skipped.
func (e *SyncEngine) setStatusOption(ctx context.Context, client trackerClient, projectID, itemID string, statusField *github.ProjectField, status task.Status, warnings *warningList) {
	if statusField == nil {
		return
	}

	optionName := statusOption(status)
	optionID := ""
	for _, option := range statusField.Options {
		if option.Name == optionName {
			optionID = option.ID
			break
		}
	}
	if optionID == "" {
		for _, option := range statusField.Options {
			if strings.EqualFold(option.Name, optionName) {
				optionID = option.ID
				break
			}
		}
	}
	if optionID == "" {
		warnings.add("project status field has no option %q", optionName)
		return
	}

	if err := client.SetProjectItemFieldOption(ctx, projectID, itemID, statusField.ID, optionID); err != nil {
		warnings.add("setting project status to %q: %v", optionName, err)
	}
}
