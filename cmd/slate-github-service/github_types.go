// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Webhook payload normalization. GitHub's issues payloads are loosely
// shaped in two ways that matter to the sync engine: labels arrive
// either as plain strings or as {name, color} objects, and the assignee
// is a singular field, a plural list, or both at once. Everything below
// decodes those variants once, at the boundary, into one canonical
// IssuePayload — engine code never sees a raw payload.
//
// The structs are minimal: they extract only the fields the importer
// needs. Webhook payloads carry hundreds of fields that are irrelevant
// here. Unknown fields are ignored; malformed known fields are errors.

// IssuePayload is the canonical form of an issue as the engine consumes
// it: from a webhook delivery, from a replayed archive entry, or
// rebuilt from an API re-fetch.
type IssuePayload struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`

	// State is "open" or "closed".
	State string `json:"state"`

	// Labels holds the label names, variant-free.
	Labels []string `json:"labels"`

	// AssigneeLogins holds the external assignee logins with the
	// singular "assignee" field first, then the "assignees" list,
	// deduplicated in order. The importer only ever uses the first
	// entry; the rest are kept for logging.
	AssigneeLogins []string `json:"assignee_logins"`
}

// issuesEvent is a parsed and normalized "issues" webhook delivery.
type issuesEvent struct {
	Action string
	Repo   string
	Issue  IssuePayload
}

// rawIssuesPayload is the wire shape of an issues delivery. The loose
// fields stay as json.RawMessage until normalization probes their
// variant.
type rawIssuesPayload struct {
	Action     string        `json:"action"`
	Issue      rawIssue      `json:"issue"`
	Repository rawRepository `json:"repository"`
}

type rawRepository struct {
	FullName string `json:"full_name"` // "owner/name"
}

type rawIssue struct {
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	State     string            `json:"state"`
	Labels    []json.RawMessage `json:"labels"`
	Assignee  json.RawMessage   `json:"assignee"`
	Assignees []json.RawMessage `json:"assignees"`
}

// parseIssuesEvent decodes a raw issues delivery body and normalizes
// the issue into canonical form.
func parseIssuesEvent(body []byte) (*issuesEvent, error) {
	var payload rawIssuesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing issues payload: %w", err)
	}
	if payload.Issue.Number <= 0 {
		return nil, fmt.Errorf("issues payload has no issue number")
	}

	issue, err := normalizeIssue(payload.Issue)
	if err != nil {
		return nil, err
	}

	return &issuesEvent{
		Action: payload.Action,
		Repo:   payload.Repository.FullName,
		Issue:  issue,
	}, nil
}

// normalizeIssue resolves the tagged-union fields of a raw issue into
// the canonical payload shape.
func normalizeIssue(raw rawIssue) (IssuePayload, error) {
	issue := IssuePayload{
		Number: raw.Number,
		Title:  raw.Title,
		Body:   raw.Body,
		State:  raw.State,
	}

	for i, rawLabel := range raw.Labels {
		name, err := normalizeLabel(rawLabel)
		if err != nil {
			return issue, fmt.Errorf("issue #%d label %d: %w", raw.Number, i, err)
		}
		if name != "" {
			issue.Labels = append(issue.Labels, name)
		}
	}

	// Singular assignee first: when both forms are present the
	// singular one is the tracker's primary, and the importer prefers
	// it (first entry wins).
	seen := make(map[string]bool)
	appendLogin := func(login string) {
		if login == "" || seen[login] {
			return
		}
		seen[login] = true
		issue.AssigneeLogins = append(issue.AssigneeLogins, login)
	}

	login, err := normalizeAssignee(raw.Assignee)
	if err != nil {
		return issue, fmt.Errorf("issue #%d assignee: %w", raw.Number, err)
	}
	appendLogin(login)

	for i, rawAssignee := range raw.Assignees {
		login, err := normalizeAssignee(rawAssignee)
		if err != nil {
			return issue, fmt.Errorf("issue #%d assignees %d: %w", raw.Number, i, err)
		}
		appendLogin(login)
	}

	return issue, nil
}

// normalizeLabel resolves a label that is either a JSON string or an
// object with a "name" field. Null and empty values normalize to "".
func normalizeLabel(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return "", fmt.Errorf("label string: %w", err)
		}
		return name, nil
	}
	var label struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &label); err != nil {
		return "", fmt.Errorf("label object: %w", err)
	}
	return label.Name, nil
}

// normalizeAssignee resolves an assignee that is either a JSON string
// login or a user object with a "login" field. Null and empty values
// normalize to "".
func normalizeAssignee(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var login string
		if err := json.Unmarshal(trimmed, &login); err != nil {
			return "", fmt.Errorf("assignee string: %w", err)
		}
		return login, nil
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return "", fmt.Errorf("assignee object: %w", err)
	}
	return user.Login, nil
}
