// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProjectByNumber_UserProject(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		requestCount++
		if !strings.Contains(query, "user(login:") {
			t.Errorf("expected user query, got: %s", query)
		}
		if variables["login"] != "alice" || variables["number"] != float64(3) {
			t.Errorf("variables = %v, want login=alice number=3", variables)
		}
		return `{"data": {"user": {"projectV2": {"id": "PVT_user3", "number": 3, "title": "Sprint Board"}}}}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	project, err := client.ProjectByNumber(context.Background(), "alice", 3)
	if err != nil {
		t.Fatalf("ProjectByNumber: %v", err)
	}

	if project == nil || project.ID != "PVT_user3" {
		t.Fatalf("project = %+v, want ID PVT_user3", project)
	}
	if project.Title != "Sprint Board" {
		t.Errorf("Title = %q, want %q", project.Title, "Sprint Board")
	}
	if requestCount != 1 {
		t.Errorf("expected 1 request (no org fallback), got %d", requestCount)
	}
}

func TestProjectByNumber_OrgFallback(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		requestCount++
		if strings.Contains(query, "user(login:") {
			return `{
				"data": {"user": null},
				"errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a User with the login of 'acme-corp'."}]
			}`
		}
		if !strings.Contains(query, "organization(login:") {
			t.Errorf("expected organization query, got: %s", query)
		}
		return `{"data": {"organization": {"projectV2": {"id": "PVT_org9", "number": 9, "title": "Roadmap"}}}}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	project, err := client.ProjectByNumber(context.Background(), "acme-corp", 9)
	if err != nil {
		t.Fatalf("ProjectByNumber: %v", err)
	}

	if project == nil || project.ID != "PVT_org9" {
		t.Fatalf("project = %+v, want ID PVT_org9", project)
	}
	if requestCount != 2 {
		t.Errorf("expected 2 requests (user then org), got %d", requestCount)
	}
}

func TestProjectByNumber_Absent(t *testing.T) {
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		if strings.Contains(query, "user(login:") {
			return `{
				"data": {"user": null},
				"errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a User with the login of 'ghost'."}]
			}`
		}
		return `{
			"data": {"organization": null},
			"errors": [{"type": "NOT_FOUND", "message": "Could not resolve to an Organization with the login of 'ghost'."}]
		}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	project, err := client.ProjectByNumber(context.Background(), "ghost", 1)
	if err != nil {
		t.Fatalf("ProjectByNumber: %v", err)
	}
	if project != nil {
		t.Errorf("project = %+v, want nil for absent owner", project)
	}
}

func TestProjectByNumber_ExistingOwnerNoProject(t *testing.T) {
	// Owner exists but the project number does not resolve: GitHub
	// returns a null projectV2 alongside a NOT_FOUND error.
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		if strings.Contains(query, "user(login:") {
			return `{
				"data": {"user": {"projectV2": null}},
				"errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a ProjectV2 with the number of 99."}]
			}`
		}
		return `{
			"data": {"organization": null},
			"errors": [{"type": "NOT_FOUND", "message": "Could not resolve to an Organization with the login of 'alice'."}]
		}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	project, err := client.ProjectByNumber(context.Background(), "alice", 99)
	if err != nil {
		t.Fatalf("ProjectByNumber: %v", err)
	}
	if project != nil {
		t.Errorf("project = %+v, want nil for absent project number", project)
	}
}

func TestProjectByNumber_MissingScope(t *testing.T) {
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		return `{
			"data": {"user": null},
			"errors": [{"type": "INSUFFICIENT_SCOPES", "message": "requires ['read:project']"}]
		}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.ProjectByNumber(context.Background(), "acme-corp", 9)
	if err == nil {
		t.Fatal("expected missing-scope error")
	}
	if !errors.Is(err, ErrMissingScope) {
		t.Errorf("expected ErrMissingScope, got: %v", err)
	}
}

func TestProjectFields(t *testing.T) {
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		if variables["projectId"] != "PVT_org9" {
			t.Errorf("variables.projectId = %v, want PVT_org9", variables["projectId"])
		}
		// Text and iteration fields fall outside the inline fragment
		// and arrive as empty objects.
		return `{"data": {"node": {"fields": {"nodes": [
			{},
			{"id": "F_status", "name": "Status", "options": [
				{"id": "OPT_todo", "name": "Todo"},
				{"id": "OPT_done", "name": "Done"}
			]},
			{},
			{"id": "F_priority", "name": "Priority", "options": [{"id": "OPT_high", "name": "High"}]}
		]}}}}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	fields, err := client.ProjectFields(context.Background(), "PVT_org9")
	if err != nil {
		t.Fatalf("ProjectFields: %v", err)
	}

	if len(fields) != 2 {
		t.Fatalf("expected 2 single-select fields, got %d", len(fields))
	}
	if fields[0].Name != "Status" || len(fields[0].Options) != 2 {
		t.Errorf("fields[0] = %+v, want Status with 2 options", fields[0])
	}
	if fields[1].Name != "Priority" {
		t.Errorf("fields[1].Name = %q, want Priority", fields[1].Name)
	}
}

func TestProjectItemsPage(t *testing.T) {
	requestCount := 0
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		requestCount++
		switch requestCount {
		case 1:
			if _, present := variables["cursor"]; present {
				t.Errorf("first page request carried cursor %v, want absent", variables["cursor"])
			}
			if variables["pageSize"] != float64(2) {
				t.Errorf("variables.pageSize = %v, want 2", variables["pageSize"])
			}
			// Second item is a draft: no issue content.
			return `{"data": {"node": {"items": {
				"nodes": [
					{"id": "ITEM_1", "content": {"id": "I_node1"}},
					{"id": "ITEM_2", "content": {}}
				],
				"pageInfo": {"endCursor": "CUR_2", "hasNextPage": true}
			}}}}`
		case 2:
			if variables["cursor"] != "CUR_2" {
				t.Errorf("variables.cursor = %v, want CUR_2", variables["cursor"])
			}
			return `{"data": {"node": {"items": {
				"nodes": [{"id": "ITEM_3", "content": {"id": "I_node3"}}],
				"pageInfo": {"endCursor": "CUR_3", "hasNextPage": false}
			}}}}`
		default:
			t.Errorf("unexpected request %d", requestCount)
			return `{"data": null}`
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	ctx := context.Background()

	page1, err := client.ProjectItemsPage(ctx, "PVT_org9", "", 2)
	if err != nil {
		t.Fatalf("first ProjectItemsPage: %v", err)
	}
	if len(page1.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page1.Items))
	}
	if page1.Items[0].ContentNodeID != "I_node1" {
		t.Errorf("Items[0].ContentNodeID = %q, want I_node1", page1.Items[0].ContentNodeID)
	}
	if page1.Items[1].ContentNodeID != "" {
		t.Errorf("draft item ContentNodeID = %q, want empty", page1.Items[1].ContentNodeID)
	}
	if !page1.HasNextPage || page1.EndCursor != "CUR_2" {
		t.Errorf("page1 cursor state = %+v, want hasNextPage with CUR_2", page1)
	}

	page2, err := client.ProjectItemsPage(ctx, "PVT_org9", page1.EndCursor, 2)
	if err != nil {
		t.Fatalf("second ProjectItemsPage: %v", err)
	}
	if len(page2.Items) != 1 || page2.HasNextPage {
		t.Errorf("page2 = %+v, want 1 item and no next page", page2)
	}
}

func TestAddProjectItem(t *testing.T) {
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		if !strings.Contains(query, "addProjectV2ItemById") {
			t.Errorf("expected addProjectV2ItemById mutation, got: %s", query)
		}
		if variables["contentId"] != "I_node42" {
			t.Errorf("variables.contentId = %v, want I_node42", variables["contentId"])
		}
		return `{"data": {"addProjectV2ItemById": {"item": {"id": "ITEM_new"}}}}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	itemID, err := client.AddProjectItem(context.Background(), "PVT_org9", "I_node42")
	if err != nil {
		t.Fatalf("AddProjectItem: %v", err)
	}
	if itemID != "ITEM_new" {
		t.Errorf("itemID = %q, want ITEM_new", itemID)
	}
}

func TestSetProjectItemFieldOption(t *testing.T) {
	var receivedVariables map[string]any
	server := httptest.NewTLSServer(graphQLHandler(t, func(query string, variables map[string]any) string {
		if !strings.Contains(query, "updateProjectV2ItemFieldValue") {
			t.Errorf("expected updateProjectV2ItemFieldValue mutation, got: %s", query)
		}
		if !strings.Contains(query, "singleSelectOptionId") {
			t.Errorf("expected singleSelectOptionId value, got: %s", query)
		}
		receivedVariables = variables
		return `{"data": {"updateProjectV2ItemFieldValue": {"projectV2Item": {"id": "ITEM_1"}}}}`
	}))
	defer server.Close()

	client := newTestClient(t, server)
	err := client.SetProjectItemFieldOption(context.Background(), "PVT_org9", "ITEM_1", "F_status", "OPT_done")
	if err != nil {
		t.Fatalf("SetProjectItemFieldOption: %v", err)
	}

	want := map[string]string{
		"projectId": "PVT_org9",
		"itemId":    "ITEM_1",
		"fieldId":   "F_status",
		"optionId":  "OPT_done",
	}
	for key, value := range want {
		if receivedVariables[key] != value {
			t.Errorf("variables.%s = %v, want %q", key, receivedVariables[key], value)
		}
	}
}
