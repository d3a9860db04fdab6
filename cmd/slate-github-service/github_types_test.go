// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"reflect"
	"testing"
)

func TestParseIssuesEvent_LabelObjects(t *testing.T) {
	body := []byte(`{
		"action": "labeled",
		"issue": {
			"number": 42,
			"title": "Fix login flow",
			"body": "Sessions expire too early.",
			"state": "open",
			"labels": [{"name": "in-progress", "color": "c5def5"}, {"name": "backend"}]
		},
		"repository": {"full_name": "acme/platform"}
	}`)

	event, err := parseIssuesEvent(body)
	if err != nil {
		t.Fatalf("parseIssuesEvent: %v", err)
	}
	if event.Action != "labeled" {
		t.Errorf("action = %q, want %q", event.Action, "labeled")
	}
	if event.Repo != "acme/platform" {
		t.Errorf("repo = %q, want %q", event.Repo, "acme/platform")
	}
	if event.Issue.Number != 42 {
		t.Errorf("number = %d, want 42", event.Issue.Number)
	}
	want := []string{"in-progress", "backend"}
	if !reflect.DeepEqual(event.Issue.Labels, want) {
		t.Errorf("labels = %v, want %v", event.Issue.Labels, want)
	}
}

func TestParseIssuesEvent_LabelStrings(t *testing.T) {
	body := []byte(`{
		"action": "update",
		"issue": {
			"number": 7,
			"title": "X",
			"state": "closed",
			"labels": ["blocked"]
		},
		"repository": {"full_name": "acme/platform"}
	}`)

	event, err := parseIssuesEvent(body)
	if err != nil {
		t.Fatalf("parseIssuesEvent: %v", err)
	}
	want := []string{"blocked"}
	if !reflect.DeepEqual(event.Issue.Labels, want) {
		t.Errorf("labels = %v, want %v", event.Issue.Labels, want)
	}
	if event.Issue.State != "closed" {
		t.Errorf("state = %q, want %q", event.Issue.State, "closed")
	}
}

func TestParseIssuesEvent_AssigneeVariants(t *testing.T) {
	tests := []struct {
		name  string
		issue string
		want  []string
	}{
		{
			name:  "singular object",
			issue: `{"number": 1, "assignee": {"login": "alice"}}`,
			want:  []string{"alice"},
		},
		{
			name:  "singular string",
			issue: `{"number": 1, "assignee": "alice"}`,
			want:  []string{"alice"},
		},
		{
			name:  "plural only",
			issue: `{"number": 1, "assignees": [{"login": "bob"}, {"login": "carol"}]}`,
			want:  []string{"bob", "carol"},
		},
		{
			name:  "both forms, singular first and deduplicated",
			issue: `{"number": 1, "assignee": {"login": "alice"}, "assignees": [{"login": "alice"}, {"login": "bob"}]}`,
			want:  []string{"alice", "bob"},
		},
		{
			name:  "null singular",
			issue: `{"number": 1, "assignee": null}`,
			want:  nil,
		},
		{
			name:  "absent",
			issue: `{"number": 1}`,
			want:  nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body := []byte(`{"action": "assigned", "issue": ` + test.issue + `, "repository": {"full_name": "o/r"}}`)
			event, err := parseIssuesEvent(body)
			if err != nil {
				t.Fatalf("parseIssuesEvent: %v", err)
			}
			if !reflect.DeepEqual(event.Issue.AssigneeLogins, test.want) {
				t.Errorf("assignee logins = %v, want %v", event.Issue.AssigneeLogins, test.want)
			}
		})
	}
}

func TestParseIssuesEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"action": `},
		{"no issue number", `{"action": "opened", "issue": {"title": "X"}, "repository": {"full_name": "o/r"}}`},
		{"label number", `{"action": "opened", "issue": {"number": 1, "labels": [17]}, "repository": {"full_name": "o/r"}}`},
		{"assignee number", `{"action": "opened", "issue": {"number": 1, "assignee": 17}, "repository": {"full_name": "o/r"}}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := parseIssuesEvent([]byte(test.body)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseIssuesEvent_IgnoresUnknownFields(t *testing.T) {
	body := []byte(`{
		"action": "opened",
		"sender": {"login": "alice", "type": "User"},
		"issue": {
			"number": 3,
			"title": "T",
			"state": "open",
			"reactions": {"+1": 4},
			"milestone": {"title": "v2"}
		},
		"repository": {"full_name": "o/r", "private": true}
	}`)

	event, err := parseIssuesEvent(body)
	if err != nil {
		t.Fatalf("parseIssuesEvent: %v", err)
	}
	if event.Issue.Number != 3 {
		t.Errorf("number = %d, want 3", event.Issue.Number)
	}
}
