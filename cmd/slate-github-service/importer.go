// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/slate-foundation/slate/lib/schema/task"
)

// ErrBoardNotConfigured reports an import aimed at a board that does
// not exist or does not have sync configured. The webhook receiver
// maps it to a not-found response.
var ErrBoardNotConfigured = errors.New("board sync not configured")

// ImportIssue creates or updates the internal task mirroring an
// external issue. boardID selects the board explicitly (socket
// `import-issue`); zero resolves the board from the repository
// (webhook path). The board must have sync configured — unlike the
// outbound path this is an error, because the caller only reaches
// here through a configured webhook or an explicit operator request,
// and silently accepting the delivery would hide a broken binding.
//
// The webhook payload is a hint, not authoritative: the issue is
// re-fetched from the API and the payload is used as-is only when the
// fetch fails.
//
// The task mutation is recorded with the external origin, which the
// dispatcher uses to break the webhook→import→push→webhook loop. The
// importer never invokes the outbound updater.
func (e *SyncEngine) ImportIssue(ctx context.Context, payload IssuePayload, repo string, boardID int64) (*ImportResult, error) {
	board, err := e.importBoard(ctx, repo, boardID)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("board_id", board.ID, "issue", payload.Number)
	warnings := &warningList{logger: logger}

	payload = e.refreshFromTracker(ctx, board, payload, warnings)
	if payload.Title == "" {
		return nil, fmt.Errorf("issue #%d has no title and could not be fetched from the tracker", payload.Number)
	}

	status := deriveStatus(payload)
	columnID := e.columnForStatus(ctx, board, status, warnings)
	assigneeID := e.resolveImportAssignee(ctx, board, payload, warnings)

	imported := &task.Task{
		BoardID:     board.ID,
		ColumnID:    columnID,
		Title:       payload.Title,
		Body:        payload.Body,
		Status:      status,
		SortOrder:   0,
		AssigneeID:  assigneeID,
		IssueNumber: payload.Number,
		LastOrigin:  task.OriginExternal,
	}
	created, err := e.store.UpsertImportedTask(ctx, imported)
	if err != nil {
		return nil, err
	}

	logger.Info("imported issue",
		"task_id", imported.ID,
		"status", string(status),
		"created", created,
	)
	return &ImportResult{
		Task:     imported,
		Created:  created,
		Warnings: warnings.items,
	}, nil
}

// importBoard loads the board for an import and enforces the sync
// configuration guard.
func (e *SyncEngine) importBoard(ctx context.Context, repo string, boardID int64) (*task.Board, error) {
	var board *task.Board
	var err error
	if boardID > 0 {
		board, err = e.store.BoardByID(ctx, boardID)
	} else {
		board, err = e.store.BoardByRepo(ctx, repo)
	}
	if err != nil {
		return nil, err
	}
	if board == nil {
		if boardID > 0 {
			return nil, fmt.Errorf("%w: board %d not found", ErrBoardNotConfigured, boardID)
		}
		return nil, fmt.Errorf("%w: no board is bound to repository %q", ErrBoardNotConfigured, repo)
	}
	if !board.Syncable() {
		return nil, fmt.Errorf("%w: board %d (%s) has sync disabled", ErrBoardNotConfigured, board.ID, board.Name)
	}
	return board, nil
}

// refreshFromTracker replaces the payload with the authoritative issue
// from the API. Fetch failures fall back to the payload with a
// warning.
func (e *SyncEngine) refreshFromTracker(ctx context.Context, board *task.Board, payload IssuePayload, warnings *warningList) IssuePayload {
	client, err := e.client(board)
	if err != nil {
		warnings.add("using webhook payload as-is: %v", err)
		return payload
	}
	owner, repoName, err := board.RepoParts()
	if err != nil {
		warnings.add("using webhook payload as-is: %v", err)
		return payload
	}

	issue, err := client.GetIssue(ctx, owner, repoName, payload.Number)
	if err != nil {
		warnings.add("refreshing issue #%d from the tracker: %v; using webhook payload", payload.Number, err)
		return payload
	}

	refreshed := IssuePayload{
		Number: issue.Number,
		Title:  issue.Title,
		Body:   issue.Body,
		State:  issue.State,
	}
	for _, label := range issue.Labels {
		if label.Name != "" {
			refreshed.Labels = append(refreshed.Labels, label.Name)
		}
	}
	seen := make(map[string]bool)
	appendLogin := func(login string) {
		if login == "" || seen[login] {
			return
		}
		seen[login] = true
		refreshed.AssigneeLogins = append(refreshed.AssigneeLogins, login)
	}
	if issue.Assignee != nil {
		appendLogin(issue.Assignee.Login)
	}
	for _, user := range issue.Assignees {
		appendLogin(user.Login)
	}
	return refreshed
}

// deriveStatus computes the canonical status for an imported issue:
// the open/closed state sets the default (closed → Done, open → Todo),
// and the first label that maps to a status overrides it. Labels win
// over the state, so a closed issue labeled "blocked" imports as
// Blocked, not Done.
func deriveStatus(payload IssuePayload) task.Status {
	status := task.StatusTodo
	if payload.State == "closed" {
		status = task.StatusDone
	}
	for _, label := range payload.Labels {
		if mapped, ok := statusForLabel(label); ok {
			status = mapped
			break
		}
	}
	return status
}

// columnForStatus picks the board column bound to the status, falling
// back to the board's first column by position.
func (e *SyncEngine) columnForStatus(ctx context.Context, board *task.Board, status task.Status, warnings *warningList) int64 {
	columns, err := e.store.Columns(ctx, board.ID)
	if err != nil {
		warnings.add("loading board columns: %v", err)
		return 0
	}
	if len(columns) == 0 {
		warnings.add("board %d has no columns", board.ID)
		return 0
	}
	for _, column := range columns {
		if column.Status == status {
			return column.ID
		}
	}
	return columns[0].ID
}

// resolveImportAssignee maps the payload's first assignee login to a
// member of the board's organization. Unresolved logins leave the
// task unassigned, never fail the import.
func (e *SyncEngine) resolveImportAssignee(ctx context.Context, board *task.Board, payload IssuePayload, warnings *warningList) int64 {
	if len(payload.AssigneeLogins) == 0 {
		return 0
	}
	login := payload.AssigneeLogins[0]

	member, err := e.resolver.MemberForLogin(ctx, board.OrgID, login)
	if err != nil {
		warnings.add("resolving assignee %q: %v", login, err)
		return 0
	}
	if member == nil {
		warnings.add("assignee %q has no linked member in org %d; importing unassigned", login, board.OrgID)
		return 0
	}
	return member.ID
}
