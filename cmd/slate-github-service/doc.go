// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// slate-github-service keeps Slate task boards and their mirrored
// GitHub issues consistent, in both directions.
//
// Outbound: a task mutation on a sync-enabled board schedules a push
// that reconciles the mirrored issue's title, body, open/closed state,
// status label, and assignee, then aligns the single-select "Status"
// field on the board's GitHub Projects board when one is configured.
//
// Inbound: GitHub delivers issues events to the webhook listener; each
// verified delivery is archived and imported as a create-or-update of
// the matching task. Imported mutations are tagged with an external
// origin so they never schedule an outbound push — that tag is what
// breaks the webhook → import → push → webhook loop.
//
// The service persists boards, members, tasks, push fingerprints, and
// the delivery archive in SQLite, and exposes an admin API over a CBOR
// unix socket consumed by the slate CLI.
package main
