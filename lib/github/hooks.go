// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// CreateWebhookRequest contains the fields for creating a repository
// webhook.
type CreateWebhookRequest struct {
	// Events is the list of event types to deliver. The sync engine
	// subscribes to ["issues"].
	Events []string `json:"events"`

	// Config holds the webhook endpoint configuration.
	Config CreateWebhookConfig `json:"config"`

	// Active enables or disables the webhook. Defaults to true.
	Active *bool `json:"active,omitempty"`
}

// CreateWebhookConfig is the webhook endpoint configuration for creation.
type CreateWebhookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"` // "json" or "form"
	Secret      string `json:"secret,omitempty"`
	InsecureSSL string `json:"insecure_ssl,omitempty"` // "0" (verify) or "1" (skip)
}

// UpdateWebhookRequest contains the fields for updating a repository
// webhook. Used to rotate the delivery secret or repoint the URL.
type UpdateWebhookRequest struct {
	Events []string             `json:"events,omitempty"`
	Config *CreateWebhookConfig `json:"config,omitempty"`
	Active *bool                `json:"active,omitempty"`
}

// ListRepoWebhooks returns a paginated iterator over webhooks configured
// on a repository.
func (client *Client) ListRepoWebhooks(ctx context.Context, owner, repo string) *PageIterator[Webhook] {
	path := fmt.Sprintf("/repos/%s/%s/hooks", owner, repo)
	return list[Webhook](client, path)
}

// CreateRepoWebhook creates a webhook on a repository.
func (client *Client) CreateRepoWebhook(ctx context.Context, owner, repo string, request CreateWebhookRequest) (*Webhook, error) {
	var webhook Webhook
	path := fmt.Sprintf("/repos/%s/%s/hooks", owner, repo)
	if err := client.post(ctx, path, request, &webhook); err != nil {
		return nil, fmt.Errorf("creating webhook on %s/%s: %w", owner, repo, err)
	}
	return &webhook, nil
}

// UpdateRepoWebhook updates an existing repository webhook.
func (client *Client) UpdateRepoWebhook(ctx context.Context, owner, repo string, hookID int64, request UpdateWebhookRequest) (*Webhook, error) {
	var webhook Webhook
	path := fmt.Sprintf("/repos/%s/%s/hooks/%d", owner, repo, hookID)
	if err := client.patch(ctx, path, request, &webhook); err != nil {
		return nil, fmt.Errorf("updating webhook %d on %s/%s: %w", hookID, owner, repo, err)
	}
	return &webhook, nil
}
