// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

type assigneesRequest struct {
	Assignees []string `json:"assignees"`
}

// AddAssignees assigns users to an issue. Logins without access to the
// repository are silently ignored by GitHub, so callers should verify
// the result if assignment must succeed.
func (client *Client) AddAssignees(ctx context.Context, owner, repo string, number int, logins []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/assignees", owner, repo, number)
	if err := client.post(ctx, path, assigneesRequest{Assignees: logins}, nil); err != nil {
		return fmt.Errorf("adding assignees to %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// RemoveAssignees unassigns users from an issue. GitHub takes the login
// list in the DELETE request body.
func (client *Client) RemoveAssignees(ctx context.Context, owner, repo string, number int, logins []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/assignees", owner, repo, number)
	if err := client.deleteRequest(ctx, path, assigneesRequest{Assignees: logins}); err != nil {
		return fmt.Errorf("removing assignees from %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}
