// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/slate-foundation/slate/lib/github"
	"github.com/slate-foundation/slate/lib/schema/task"
)

// PushTaskState reflects a task's current state onto its mirrored
// issue: title, body, open/closed state, the status label, the
// assignee, and (when the board has a project bound) the project's
// "Status" field.
//
// The operation never returns an error: callers of the mutation path
// must not have their primary change fail on sync outcome. Not-mirrored
// tasks and disabled boards are skips, not failures, and skips make
// zero tracker calls.
//
// Reconciliation is read-then-write with no optimistic concurrency.
// When two pushes for the same task race cross-process, the final
// external state is whichever write lands last.
func (e *SyncEngine) PushTaskState(ctx context.Context, taskID int64, trigger PushTrigger) SyncResult {
	logger := e.logger.With("task_id", taskID, "trigger", string(trigger))
	warnings := &warningList{logger: logger}

	if e.pushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.pushTimeout)
		defer cancel()
	}

	pushed := e.loadPushTarget(ctx, taskID, logger)
	if pushed.result != nil {
		return *pushed.result
	}
	target, board, client := pushed.task, pushed.board, pushed.client
	owner, repoName := pushed.owner, pushed.repo

	// Resolve the assignee before anything else: the login feeds both
	// the reconciliation and the fingerprint.
	assigneeLogin := ""
	if target.AssigneeID != 0 {
		login, err := e.resolver.LoginForMember(ctx, target.AssigneeID)
		if err != nil {
			warnings.add("resolving assignee for member %d: %v", target.AssigneeID, err)
		}
		assigneeLogin = login
	}

	state := outboundState{
		Title:         target.Title,
		Body:          target.Body,
		State:         issueState(target.Status),
		StatusLabel:   statusLabel(target.Status),
		AssigneeLogin: assigneeLogin,
	}
	if board.ProjectNumber > 0 {
		state.ProjectOption = statusOption(target.Status)
	}

	fingerprint, err := state.fingerprint()
	if err != nil {
		warnings.add("computing push fingerprint: %v", err)
	}

	// Mutation-triggered pushes skip when nothing externally visible
	// changed since the last successful push. Manual pushes always
	// reconcile, so an operator can repair external drift.
	if trigger == TriggerMutation && fingerprint != nil {
		stored, err := e.store.PushFingerprint(ctx, taskID)
		if err != nil {
			warnings.add("loading push fingerprint: %v", err)
		} else if stored != nil && bytes.Equal(stored, fingerprint) {
			logger.Debug("push skipped, state unchanged since last push")
			return SyncResult{
				Outcome:  OutcomeSkipped,
				Reason:   "state unchanged since last push",
				Warnings: warnings.items,
			}
		}
	}

	issue, err := client.GetIssue(ctx, owner, repoName, target.IssueNumber)
	if err != nil {
		if github.IsNotFound(err) {
			// The issue number is a weak reference: the issue was
			// deleted or transferred externally. Never recreate it.
			logger.Warn("mirrored issue gone from tracker",
				"issue", target.IssueNumber,
				"repo", board.Repo,
			)
			return SyncResult{
				Outcome:  OutcomeFailed,
				Reason:   "mirrored issue not found on tracker",
				Warnings: warnings.items,
			}
		}
		logger.Warn("fetching mirrored issue failed", "issue", target.IssueNumber, "error", err)
		return SyncResult{
			Outcome:  OutcomeFailed,
			Reason:   "fetching mirrored issue: " + err.Error(),
			Warnings: warnings.items,
		}
	}

	e.reconcileAssignees(ctx, client, owner, repoName, target, issue, assigneeLogin, warnings)
	reconcileStatusLabels(ctx, client, owner, repoName, target.IssueNumber, target.Status, warnings)

	// The core update: title, body, and open/closed state in one
	// PATCH. Labels and assignees went through their dedicated
	// endpoints above, so this call can never clobber them.
	stateValue := state.State
	request := github.UpdateIssueRequest{
		Title: &target.Title,
		Body:  &target.Body,
		State: &stateValue,
	}
	_, updateErr := client.UpdateIssue(ctx, owner, repoName, target.IssueNumber, request)
	if updateErr != nil {
		logger.Warn("issue update failed", "issue", target.IssueNumber, "error", updateErr)
	}

	// The project field is synchronized even when the core update
	// failed, keeping the board eventually consistent through
	// transient issue-update failures.
	if board.ProjectNumber > 0 {
		_, projectErr := e.syncProjectWithNode(ctx, client, owner, repoName, board.ProjectNumber, target.Status, target.IssueNumber, issue.NodeID, warnings)
		if projectErr != nil {
			warnings.add("project sync: %v", projectErr)
		}
	}

	if updateErr != nil {
		return SyncResult{
			Outcome:  OutcomeFailed,
			Reason:   "updating issue: " + updateErr.Error(),
			Warnings: warnings.items,
		}
	}

	if fingerprint != nil {
		if err := e.store.SetPushFingerprint(ctx, taskID, fingerprint); err != nil {
			warnings.add("storing push fingerprint: %v", err)
		}
	}

	logger.Info("pushed task state",
		"issue", target.IssueNumber,
		"repo", board.Repo,
		"status", string(target.Status),
		"warnings", len(warnings.items),
	)
	return SyncResult{
		Outcome:  OutcomeSynced,
		Warnings: warnings.items,
	}
}

// pushTarget carries the loaded push inputs, or the early result that
// ends the push before any tracker call.
type pushTarget struct {
	result *SyncResult
	task   *task.Task
	board  *task.Board
	client trackerClient
	owner  string
	repo   string
}

// loadPushTarget loads the task and board and applies the mirror
// guards: missing entities and disabled sync are skips, configuration
// problems are failures. No tracker calls happen here.
func (e *SyncEngine) loadPushTarget(ctx context.Context, taskID int64, logger *slog.Logger) pushTarget {
	skip := func(reason string) pushTarget {
		logger.Debug("push skipped", "reason", reason)
		return pushTarget{result: &SyncResult{Outcome: OutcomeSkipped, Reason: reason}}
	}
	fail := func(reason string) pushTarget {
		logger.Warn("push failed before reaching the tracker", "reason", reason)
		return pushTarget{result: &SyncResult{Outcome: OutcomeFailed, Reason: reason}}
	}

	target, err := e.store.TaskByID(ctx, taskID)
	if err != nil {
		return fail("loading task: " + err.Error())
	}
	if target == nil {
		return skip("task not found")
	}
	if !target.Mirrored() {
		return skip("task is not mirrored")
	}

	board, err := e.store.BoardByID(ctx, target.BoardID)
	if err != nil {
		return fail("loading board: " + err.Error())
	}
	if board == nil {
		return skip("board not found")
	}
	if !board.Syncable() {
		return skip("board sync is not configured")
	}

	client, err := e.client(board)
	if err != nil {
		return fail(err.Error())
	}
	owner, repoName, err := board.RepoParts()
	if err != nil {
		return fail(err.Error())
	}

	return pushTarget{
		task:   target,
		board:  board,
		client: client,
		owner:  owner,
		repo:   repoName,
	}
}

// reconcileAssignees converges the issue's assignee set to the task's
// assignee:
//
//   - Task unassigned: clear every external assignee.
//   - Assignee with a resolvable login: remove every other login and
//     add the one, so the final set is exactly {login} regardless of
//     prior content.
//   - Assignee without a resolvable login: leave the external set
//     untouched and warn. Clearing here would be a destructive guess.
func (e *SyncEngine) reconcileAssignees(ctx context.Context, client trackerClient, owner, repo string, target *task.Task, issue *github.Issue, assigneeLogin string, warnings *warningList) {
	current := make([]string, 0, len(issue.Assignees))
	for _, user := range issue.Assignees {
		if user.Login != "" {
			current = append(current, user.Login)
		}
	}

	if target.AssigneeID == 0 {
		if len(current) > 0 {
			if err := client.RemoveAssignees(ctx, owner, repo, target.IssueNumber, current); err != nil {
				warnings.add("clearing assignees on issue #%d: %v", target.IssueNumber, err)
			}
		}
		return
	}

	if assigneeLogin == "" {
		warnings.add("assignee member %d has no linked GitHub account; leaving issue #%d assignees untouched",
			target.AssigneeID, target.IssueNumber)
		return
	}

	alreadyAssigned := false
	stale := make([]string, 0, len(current))
	for _, login := range current {
		if strings.EqualFold(login, assigneeLogin) {
			alreadyAssigned = true
			continue
		}
		stale = append(stale, login)
	}

	if len(stale) > 0 {
		if err := client.RemoveAssignees(ctx, owner, repo, target.IssueNumber, stale); err != nil {
			warnings.add("removing stale assignees from issue #%d: %v", target.IssueNumber, err)
		}
	}
	if !alreadyAssigned {
		if err := client.AddAssignees(ctx, owner, repo, target.IssueNumber, []string{assigneeLogin}); err != nil {
			warnings.add("assigning %q to issue #%d: %v", assigneeLogin, target.IssueNumber, err)
		}
	}
}
