// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/slate-foundation/slate/lib/github"
)

// trackerClient is the slice of the GitHub client the sync engine
// uses. Tests substitute a fake; production wiring passes
// *github.Client instances built from the configured credentials.
type trackerClient interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, request github.UpdateIssueRequest) (*github.Issue, error)

	ListIssueLabels(ctx context.Context, owner, repo string, number int) ([]github.Label, error)
	AddIssueLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	RemoveIssueLabel(ctx context.Context, owner, repo string, number int, label string) error
	CreateRepoLabel(ctx context.Context, owner, repo, name, color string) error

	AddAssignees(ctx context.Context, owner, repo string, number int, logins []string) error
	RemoveAssignees(ctx context.Context, owner, repo string, number int, logins []string) error

	ProjectByNumber(ctx context.Context, login string, number int) (*github.Project, error)
	ProjectFields(ctx context.Context, projectID string) ([]github.ProjectField, error)
	ProjectItemsPage(ctx context.Context, projectID, cursor string, pageSize int) (*github.ProjectItemPage, error)
	AddProjectItem(ctx context.Context, projectID, contentNodeID string) (string, error)
	SetProjectItemFieldOption(ctx context.Context, projectID, itemID, fieldID, optionID string) error
}

var _ trackerClient = (*github.Client)(nil)
