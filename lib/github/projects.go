// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// Project is a GitHub Projects V2 board.
type Project struct {
	ID     string `json:"id"` // GraphQL node ID
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ProjectField is a single-select field on a project.
type ProjectField struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Options []ProjectFieldOption `json:"options"`
}

// ProjectFieldOption is one selectable value of a single-select field.
type ProjectFieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectItem is an entry on a project board. ContentNodeID is the
// GraphQL node ID of the linked issue, or empty for draft items and
// pull requests.
type ProjectItem struct {
	ID            string
	ContentNodeID string
}

// ProjectItemPage is one page of project items plus the cursor state
// needed to fetch the next.
type ProjectItemPage struct {
	Items       []ProjectItem
	EndCursor   string
	HasNextPage bool
}

const projectByNumberQuery = `
query($login: String!, $number: Int!) {
  user(login: $login) {
    projectV2(number: $number) { id number title }
  }
}`

const orgProjectByNumberQuery = `
query($login: String!, $number: Int!) {
  organization(login: $login) {
    projectV2(number: $number) { id number title }
  }
}`

// ProjectByNumber resolves a Projects V2 board by owner login and
// project number. The owner is tried as a user first, then as an
// organization. Returns (nil, nil) when neither owns such a project;
// a missing-scope failure surfaces as ErrMissingScope so callers can
// tell a token problem from an absent board.
func (client *Client) ProjectByNumber(ctx context.Context, login string, number int) (*Project, error) {
	variables := map[string]any{"login": login, "number": number}

	var userResult struct {
		User struct {
			ProjectV2 *Project `json:"projectV2"`
		} `json:"user"`
	}
	err := client.graphQL(ctx, projectByNumberQuery, variables, &userResult)
	if err == nil && userResult.User.ProjectV2 != nil {
		return userResult.User.ProjectV2, nil
	}
	if err != nil && !isGraphQLNotFound(err) {
		return nil, fmt.Errorf("resolving project %s/%d: %w", login, number, err)
	}

	var orgResult struct {
		Organization struct {
			ProjectV2 *Project `json:"projectV2"`
		} `json:"organization"`
	}
	err = client.graphQL(ctx, orgProjectByNumberQuery, variables, &orgResult)
	if err == nil && orgResult.Organization.ProjectV2 != nil {
		return orgResult.Organization.ProjectV2, nil
	}
	if err != nil && !isGraphQLNotFound(err) {
		return nil, fmt.Errorf("resolving project %s/%d: %w", login, number, err)
	}

	return nil, nil
}

const projectFieldsQuery = `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      fields(first: 50) {
        nodes {
          ... on ProjectV2SingleSelectField {
            id name options { id name }
          }
        }
      }
    }
  }
}`

// ProjectFields returns the single-select fields defined on a project.
// Other field types (text, number, iteration) are not returned.
func (client *Client) ProjectFields(ctx context.Context, projectID string) ([]ProjectField, error) {
	var result struct {
		Node struct {
			Fields struct {
				Nodes []ProjectField `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}
	if err := client.graphQL(ctx, projectFieldsQuery, map[string]any{"projectId": projectID}, &result); err != nil {
		return nil, fmt.Errorf("listing project fields: %w", err)
	}

	// Non-single-select fields decode as empty objects; drop them.
	fields := make([]ProjectField, 0, len(result.Node.Fields.Nodes))
	for _, field := range result.Node.Fields.Nodes {
		if field.ID != "" {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

const projectItemsQuery = `
query($projectId: ID!, $pageSize: Int!, $cursor: String) {
  node(id: $projectId) {
    ... on ProjectV2 {
      items(first: $pageSize, after: $cursor) {
        nodes {
          id
          content { ... on Issue { id } }
        }
        pageInfo { endCursor hasNextPage }
      }
    }
  }
}`

// ProjectItemsPage fetches one page of project items. Pass an empty
// cursor for the first page and the previous page's EndCursor after
// that. Draft items and pull requests appear with an empty
// ContentNodeID.
func (client *Client) ProjectItemsPage(ctx context.Context, projectID, cursor string, pageSize int) (*ProjectItemPage, error) {
	variables := map[string]any{"projectId": projectID, "pageSize": pageSize}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	var result struct {
		Node struct {
			Items struct {
				Nodes []struct {
					ID      string `json:"id"`
					Content struct {
						ID string `json:"id"`
					} `json:"content"`
				} `json:"nodes"`
				PageInfo struct {
					EndCursor   string `json:"endCursor"`
					HasNextPage bool   `json:"hasNextPage"`
				} `json:"pageInfo"`
			} `json:"items"`
		} `json:"node"`
	}
	if err := client.graphQL(ctx, projectItemsQuery, variables, &result); err != nil {
		return nil, fmt.Errorf("listing project items: %w", err)
	}

	page := &ProjectItemPage{
		Items:       make([]ProjectItem, 0, len(result.Node.Items.Nodes)),
		EndCursor:   result.Node.Items.PageInfo.EndCursor,
		HasNextPage: result.Node.Items.PageInfo.HasNextPage,
	}
	for _, node := range result.Node.Items.Nodes {
		page.Items = append(page.Items, ProjectItem{ID: node.ID, ContentNodeID: node.Content.ID})
	}
	return page, nil
}

const addProjectItemMutation = `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
    item { id }
  }
}`

// AddProjectItem adds an issue to a project board and returns the new
// item's node ID. Adding content that is already on the board returns
// the existing item, so the call is safe to repeat.
func (client *Client) AddProjectItem(ctx context.Context, projectID, contentNodeID string) (string, error) {
	var result struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	variables := map[string]any{"projectId": projectID, "contentId": contentNodeID}
	if err := client.graphQL(ctx, addProjectItemMutation, variables, &result); err != nil {
		return "", fmt.Errorf("adding project item: %w", err)
	}
	return result.AddProjectV2ItemByID.Item.ID, nil
}

const setProjectItemFieldMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId, itemId: $itemId, fieldId: $fieldId,
    value: {singleSelectOptionId: $optionId}
  }) {
    projectV2Item { id }
  }
}`

// SetProjectItemFieldOption sets a single-select field on a project item
// to the given option.
func (client *Client) SetProjectItemFieldOption(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	variables := map[string]any{
		"projectId": projectID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"optionId":  optionID,
	}
	if err := client.graphQL(ctx, setProjectItemFieldMutation, variables, nil); err != nil {
		return fmt.Errorf("setting project item field: %w", err)
	}
	return nil
}
