// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/slate-foundation/slate/lib/schema/task"
)

// statusMapping binds one canonical status to its external
// representations: the issue label (with the color used when the
// label must be created on the repository) and the project-board
// single-select option name.
type statusMapping struct {
	status task.Status
	label  string
	color  string
	option string
}

// statusMappings is the single source of truth for the status ↔ label
// ↔ option correspondence. Every component that needs a mapping goes
// through the functions below; nothing re-derives these strings.
var statusMappings = []statusMapping{
	{task.StatusTodo, "todo", "ededed", "Todo"},
	{task.StatusInProgress, "in-progress", "c5def5", "In Progress"},
	{task.StatusInReview, "in-review", "fbca04", "In Review"},
	{task.StatusDone, "done", "0e8a16", "Done"},
	{task.StatusBlocked, "blocked", "d93f0b", "Blocked"},
}

// statusLabel returns the issue label for a canonical status. Returns
// "" for an unknown status.
func statusLabel(status task.Status) string {
	for _, mapping := range statusMappings {
		if mapping.status == status {
			return mapping.label
		}
	}
	return ""
}

// statusOption returns the project-board option name for a canonical
// status. Returns "" for an unknown status.
func statusOption(status task.Status) string {
	for _, mapping := range statusMappings {
		if mapping.status == status {
			return mapping.option
		}
	}
	return ""
}

// statusLabelColor returns the hex color (no leading #) used when the
// status label has to be created on the repository.
func statusLabelColor(status task.Status) string {
	for _, mapping := range statusMappings {
		if mapping.status == status {
			return mapping.color
		}
	}
	return ""
}

// issueState returns the tracker-side open/closed state for a
// canonical status. Only Done closes the mirrored issue; Blocked stays
// open.
func issueState(status task.Status) string {
	if status.Closed() {
		return "closed"
	}
	return "open"
}

// statusForLabel maps an issue label back to its canonical status.
// Matching tries exact, then case-insensitive, then a normalized form
// with whitespace, hyphens, and underscores collapsed — so "In
// Progress", "IN-PROGRESS", and "in_progress" all resolve. The second
// return value is false when the label is not a status label.
func statusForLabel(label string) (task.Status, bool) {
	return matchStatus(label, func(mapping statusMapping) string {
		return mapping.label
	})
}

// statusForOption maps a project-board option name back to its
// canonical status, with the same matching rules as statusForLabel.
func statusForOption(option string) (task.Status, bool) {
	return matchStatus(option, func(mapping statusMapping) string {
		return mapping.option
	})
}

// statusLabels returns the closed set of status label strings. The
// outbound updater removes every member of this set except the current
// one, so stale status labels never coexist.
func statusLabels() []string {
	labels := make([]string, len(statusMappings))
	for i, mapping := range statusMappings {
		labels[i] = mapping.label
	}
	return labels
}

// matchStatus runs the three-stage match against one external
// representation (label or option) of each mapping.
func matchStatus(value string, representation func(statusMapping) string) (task.Status, bool) {
	for _, mapping := range statusMappings {
		if representation(mapping) == value {
			return mapping.status, true
		}
	}
	for _, mapping := range statusMappings {
		if strings.EqualFold(representation(mapping), value) {
			return mapping.status, true
		}
	}
	normalized := normalizeStatusToken(value)
	if normalized == "" {
		return "", false
	}
	for _, mapping := range statusMappings {
		if normalizeStatusToken(representation(mapping)) == normalized {
			return mapping.status, true
		}
	}
	return "", false
}

// normalizeStatusToken lower-cases a label or option name and drops
// the separator characters that vary between representations.
func normalizeStatusToken(value string) string {
	var builder strings.Builder
	for _, char := range strings.ToLower(value) {
		switch char {
		case ' ', '\t', '-', '_':
			continue
		}
		builder.WriteRune(char)
	}
	return builder.String()
}
