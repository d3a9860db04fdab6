// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/url"
)

// ListIssueLabels returns all labels currently attached to an issue.
// Label sets on a single issue are small, so this fetches one page
// rather than iterating.
func (client *Client) ListIssueLabels(ctx context.Context, owner, repo string, number int) ([]Label, error) {
	var labels []Label
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels?per_page=100", owner, repo, number)
	if err := client.get(ctx, path, &labels); err != nil {
		return nil, fmt.Errorf("listing labels on %s/%s#%d: %w", owner, repo, number, err)
	}
	return labels, nil
}

// AddIssueLabels attaches labels to an issue. Labels that do not exist
// in the repository cause a 422 validation error; callers that need the
// label to exist first should create it with CreateRepoLabel.
func (client *Client) AddIssueLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	request := struct {
		Labels []string `json:"labels"`
	}{Labels: labels}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	if err := client.post(ctx, path, request, nil); err != nil {
		return fmt.Errorf("adding labels to %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// RemoveIssueLabel detaches a single label from an issue. Removing a
// label the issue does not carry is not an error; GitHub's 404 for
// that case is swallowed so reconciliation stays idempotent.
func (client *Client) RemoveIssueLabel(ctx context.Context, owner, repo string, number int, label string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels/%s", owner, repo, number, url.PathEscape(label))
	err := client.deleteRequest(ctx, path, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing label %q from %s/%s#%d: %w", label, owner, repo, number, err)
	}
	return nil
}

// CreateRepoLabel creates a label in the repository. Used when a label
// add fails because the label does not exist yet.
func (client *Client) CreateRepoLabel(ctx context.Context, owner, repo, name, color string) error {
	request := struct {
		Name  string `json:"name"`
		Color string `json:"color,omitempty"`
	}{Name: name, Color: color}
	path := fmt.Sprintf("/repos/%s/%s/labels", owner, repo)
	if err := client.post(ctx, path, request, nil); err != nil {
		return fmt.Errorf("creating label %q in %s/%s: %w", name, owner, repo, err)
	}
	return nil
}
