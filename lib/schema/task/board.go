// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Board is a task board belonging to one organization. The sync
// configuration fields (SyncEnabled, Repo, ProjectNumber, Credential)
// are created and edited by board administrators and read by every
// sync operation; the sync engine never mutates them.
type Board struct {
	// ID is the store-assigned board identifier.
	ID int64

	// OrgID is the owning organization. Account resolution for this
	// board's tasks is scoped to members of this organization.
	OrgID int64

	// Name is the display name.
	Name string

	// SyncEnabled turns GitHub mirroring on for this board. With sync
	// disabled the board's tasks are never pushed and inbound
	// deliveries for its repository are rejected.
	SyncEnabled bool

	// Repo is the mirrored repository as "owner/name". Empty means
	// the board is not bound to a repository.
	Repo string

	// ProjectNumber is the GitHub Projects board number whose
	// single-select "Status" field mirrors task status. Zero means no
	// project board is configured; issue state and labels still sync.
	ProjectNumber int

	// Credential names an entry in the service configuration's
	// credential map. Empty means no credential is bound and the
	// board's tasks are treated as not mirrored.
	Credential string

	CreatedAt time.Time
}

// Syncable reports whether outbound sync can run for this board: sync
// is enabled and both a repository and a credential are bound. A
// non-syncable board is "not mirrored", not an error.
func (b *Board) Syncable() bool {
	return b.SyncEnabled && b.Repo != "" && b.Credential != ""
}

// RepoParts splits the board's "owner/name" repository identifier.
func (b *Board) RepoParts() (owner, name string, err error) {
	return SplitRepo(b.Repo)
}

// SplitRepo splits an "owner/name" repository identifier into its two
// parts. Both parts must be non-empty and the identifier must contain
// exactly one slash.
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("task: repository %q is not in owner/name form", repo)
	}
	return owner, name, nil
}

// Validate checks that required fields are present and that the sync
// configuration, when bound, is well-formed.
func (b *Board) Validate() error {
	if b.OrgID <= 0 {
		return errors.New("board: org id is required")
	}
	if b.Name == "" {
		return errors.New("board: name is required")
	}
	if b.Repo != "" {
		if _, _, err := SplitRepo(b.Repo); err != nil {
			return fmt.Errorf("board: %w", err)
		}
	}
	if b.ProjectNumber < 0 {
		return fmt.Errorf("board: project number must be >= 0, got %d", b.ProjectNumber)
	}
	return nil
}

// Column is one status column on a board. Columns are ordered by
// Position and each is bound 1:1 to a canonical status; the importer
// places tasks into the column bound to their derived status, falling
// back to the board's first column.
type Column struct {
	// ID is the store-assigned column identifier.
	ID int64

	// BoardID is the owning board.
	BoardID int64

	// Name is the display name (e.g. "In Review").
	Name string

	// Position orders columns left to right, starting at 0.
	Position int

	// Status is the canonical status this column represents.
	Status Status
}

// Validate checks that required fields are present and well-formed.
func (c *Column) Validate() error {
	if c.BoardID <= 0 {
		return errors.New("column: board id is required")
	}
	if c.Name == "" {
		return errors.New("column: name is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("column: position must be >= 0, got %d", c.Position)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("column: unknown status %q", c.Status)
	}
	return nil
}

// Member is a platform member within one organization. The optional
// GitHubUsername links the member to an external account for assignee
// resolution; members without one sync unassigned.
type Member struct {
	// ID is the store-assigned member identifier.
	ID int64

	// OrgID is the owning organization.
	OrgID int64

	// DisplayName is the member's display name.
	DisplayName string

	// Email is the member's login email.
	Email string

	// GitHubUsername is the member's GitHub login, or empty when the
	// member has no linked external account.
	GitHubUsername string
}

// Validate checks that required fields are present.
func (m *Member) Validate() error {
	if m.OrgID <= 0 {
		return errors.New("member: org id is required")
	}
	if m.DisplayName == "" && m.Email == "" {
		return errors.New("member: display name or email is required")
	}
	return nil
}
