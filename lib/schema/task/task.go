// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
	"time"
)

// Status is the canonical lifecycle state of a task. Exactly five
// values exist; every other representation (issue labels, project-board
// options, board columns) maps onto these.
type Status string

const (
	// StatusTodo is the initial state for new work.
	StatusTodo Status = "todo"

	// StatusInProgress marks work that has been claimed and started.
	StatusInProgress Status = "in_progress"

	// StatusInReview marks work waiting on reviewer feedback.
	StatusInReview Status = "in_review"

	// StatusDone marks completed work. This is the only status that
	// maps to a closed external issue.
	StatusDone Status = "done"

	// StatusBlocked marks work that cannot proceed. Blocked tasks
	// stay open externally; the blockage is expressed via the status
	// label and project field only.
	StatusBlocked Status = "blocked"
)

// Statuses returns the five canonical statuses in workflow order.
// The returned slice is a fresh copy.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusBlocked}
}

// Valid reports whether s is one of the five canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Closed reports whether this status corresponds to a closed external
// issue. Only Done closes the mirror; Blocked tasks remain open.
func (s Status) Closed() bool {
	return s == StatusDone
}

// Origin tags a task mutation with where it came from. The sync
// engine's dispatcher uses the origin to break the inbound→outbound
// feedback loop: mutations written by the importer are tagged
// OriginExternal and never schedule an outbound push.
type Origin string

const (
	// OriginInternal marks mutations made by the platform itself
	// (CRUD handlers, operator CLI).
	OriginInternal Origin = "internal"

	// OriginExternal marks mutations written by the inbound importer
	// on behalf of a webhook delivery.
	OriginExternal Origin = "external"
)

// Valid reports whether o is a recognized mutation origin.
func (o Origin) Valid() bool {
	return o == OriginInternal || o == OriginExternal
}

// Task is an internal work item. Tasks live on a board, in one of the
// board's status columns. A task with a non-zero IssueNumber is
// mirrored: it tracks an issue in the board's configured GitHub
// repository, and the pair (BoardID, IssueNumber) is unique.
type Task struct {
	// ID is the store-assigned task identifier.
	ID int64

	// BoardID is the owning board.
	BoardID int64

	// ColumnID is the board column the task currently sits in.
	ColumnID int64

	// Title is a short summary of the work item.
	Title string

	// Body is the full description, markdown passed through opaquely.
	Body string

	// Status is the canonical lifecycle state.
	Status Status

	// SortOrder positions the task within its column. Imported tasks
	// are created at 0 (top of column).
	SortOrder int

	// AssigneeID references the assigned member, or 0 when the task
	// is unassigned.
	AssigneeID int64

	// IssueNumber is the mirrored GitHub issue number, or 0 when the
	// task is not mirrored. The issue is a weak reference: the sync
	// engine never assumes it still exists and never recreates it.
	IssueNumber int

	// LastOrigin records where the most recent mutation came from.
	LastOrigin Origin

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mirrored reports whether the task tracks an external issue.
func (t *Task) Mirrored() bool {
	return t.IssueNumber > 0
}

// Validate checks that required fields are present and well-formed.
// Returns an error describing the first invalid field found.
func (t *Task) Validate() error {
	if t.BoardID <= 0 {
		return errors.New("task: board id is required")
	}
	if t.Title == "" {
		return errors.New("task: title is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task: unknown status %q", t.Status)
	}
	if t.IssueNumber < 0 {
		return fmt.Errorf("task: issue number must be >= 0, got %d", t.IssueNumber)
	}
	if t.LastOrigin != "" && !t.LastOrigin.Valid() {
		return fmt.Errorf("task: unknown mutation origin %q", t.LastOrigin)
	}
	return nil
}
