// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package task defines the domain types shared between the Slate task
// store and the GitHub synchronization engine: tasks, boards, status
// columns, members, and the canonical five-value task status
// enumeration.
//
// The canonical Status values are the single internal representation of
// task state. External representations (issue labels, project-board
// option names) are derived from Status by the sync engine's mapping
// table and never stored here.
package task
