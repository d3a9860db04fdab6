// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "time"

// User is a GitHub user reference. Appears in issue authors and
// assignees.
type User struct {
	Login   string `json:"login"`
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// Label is a GitHub issue label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue is a GitHub issue. The singular Assignee field is what the REST
// API reports as the primary assignee; Assignees carries the full set.
// Issues with no assignee have a nil Assignee and an empty Assignees
// slice.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	HTMLURL   string     `json:"html_url"`
	NodeID    string     `json:"node_id"` // GraphQL node ID, used for Projects V2
	User      User       `json:"user"`
	Labels    []Label    `json:"labels"`
	Assignee  *User      `json:"assignee"`
	Assignees []User     `json:"assignees"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// Webhook is a GitHub webhook configuration.
type Webhook struct {
	ID     int64         `json:"id"`
	Active bool          `json:"active"`
	Events []string      `json:"events"`
	Config WebhookConfig `json:"config"`
}

// WebhookConfig holds the webhook endpoint configuration.
type WebhookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Secret      string `json:"secret,omitempty"` // masked in responses
	InsecureSSL string `json:"insecure_ssl"`
}
