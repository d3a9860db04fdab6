// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared infrastructure for Slate daemons.
//
// A Slate daemon is a standalone Go binary with a Unix socket control
// API and, when webhook ingestion is configured, a TCP HTTP listener.
// This package extracts the scaffolding both surfaces need:
//
//   - SocketServer: a CBOR request-response protocol on a Unix socket.
//     Each connection carries exactly one request and one response.
//     Handlers are registered per action; the server routes on the
//     request's "action" field.
//
//   - ServiceClient: the client side of the socket protocol, used by
//     the slate CLI to drive a running daemon.
//
//   - HTTPServer: lifecycle management (early bind, readiness signal,
//     graceful drain) for the webhook listener, plus HMAC-SHA256
//     signature verification for GitHub delivery payloads.
//
// # Access control
//
// The socket protocol carries no credentials. The socket file's
// permissions are the access control: the daemon creates it in its
// state directory, and whoever can open it can invoke any action.
// This matches how the daemon is deployed — one operator account per
// host, with the state directory mode 0700. The webhook listener is
// the only network-facing surface, and it authenticates each delivery
// with the shared webhook secret (VerifyWebhookHMAC) before touching
// any state.
package service
