// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package github provides a typed Go client for the GitHub REST and
// GraphQL APIs, covering the surface the sync engine needs: issue
// reads and updates, label and assignee mutation, repository webhook
// management, and Projects V2 board queries and item mutations.
//
// The client authenticates via GitHub App installation tokens
// (preferred) or personal access tokens. It handles rate limiting
// (X-RateLimit-* headers with automatic backoff), pagination (RFC 5988
// Link headers), conditional requests (ETags), and structured error
// mapping. When a request timeout is configured, every request —
// including the response body read — runs under its own deadline, so a
// stalled tracker call can never hold a sync invocation indefinitely.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs.
package github
