// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/slate-foundation/slate/lib/schema/task"
)

// AccountResolver maps between platform members and GitHub logins.
//
// The primary source is the member profile (the github_username
// column). An optional JSONC account-map file layers overrides on top,
// for members whose GitHub identity is not stored in their profile:
//
//	{
//	  // org ID → GitHub login → member ID
//	  "orgs": {
//	    "1": {
//	      "alice-gh": 3,
//	    },
//	  },
//	}
//
// Overrides are consulted before the store in both directions.
// Resolution never fails a sync: an unknown login resolves to no
// member, an unlinked member resolves to no login.
type AccountResolver struct {
	store     *Store
	logger    *slog.Logger
	overrides map[int64]map[string]int64 // org ID → lowercase login → member ID
}

// NewAccountResolver creates a resolver backed by the store. When
// accountMapPath is non-empty, the JSONC override file is loaded and
// parse errors are fatal; a missing optional file is configured as an
// empty path, not a dangling one.
func NewAccountResolver(store *Store, accountMapPath string, logger *slog.Logger) (*AccountResolver, error) {
	resolver := &AccountResolver{
		store:  store,
		logger: logger,
	}

	if accountMapPath != "" {
		data, err := os.ReadFile(accountMapPath)
		if err != nil {
			return nil, fmt.Errorf("account map: reading %s: %w", accountMapPath, err)
		}
		overrides, err := parseAccountMap(data)
		if err != nil {
			return nil, fmt.Errorf("account map: %s: %w", accountMapPath, err)
		}
		resolver.overrides = overrides
		logger.Info("account map loaded",
			"path", accountMapPath,
			"orgs", len(overrides),
		)
	}

	return resolver, nil
}

// MemberForLogin resolves a GitHub login to a member of the given
// organization, or (nil, nil) when the login is not linked to anyone.
// Logins compare case-insensitively.
func (r *AccountResolver) MemberForLogin(ctx context.Context, orgID int64, login string) (*task.Member, error) {
	if login == "" {
		return nil, nil
	}

	if memberID, ok := r.overrides[orgID][strings.ToLower(login)]; ok {
		member, err := r.store.MemberByID(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member == nil || member.OrgID != orgID {
			r.logger.Warn("account map points at a missing member",
				"org_id", orgID,
				"login", login,
				"member_id", memberID,
			)
			return nil, nil
		}
		return member, nil
	}

	return r.store.MemberByGitHubUsername(ctx, orgID, login)
}

// LoginForMember resolves a member ID to its GitHub login, or ""
// when the member does not exist or has no linked account. Profile
// usernames win over account-map overrides.
func (r *AccountResolver) LoginForMember(ctx context.Context, memberID int64) (string, error) {
	if memberID == 0 {
		return "", nil
	}

	member, err := r.store.MemberByID(ctx, memberID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", nil
	}
	if member.GitHubUsername != "" {
		return member.GitHubUsername, nil
	}

	// Reverse override lookup. Several logins can map to one member;
	// iterate in sorted order so the answer is stable.
	orgOverrides := r.overrides[member.OrgID]
	logins := make([]string, 0, len(orgOverrides))
	for login := range orgOverrides {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	for _, login := range logins {
		if orgOverrides[login] == memberID {
			return login, nil
		}
	}
	return "", nil
}

// accountMapDocument is the on-disk shape of the override file.
type accountMapDocument struct {
	Orgs map[string]map[string]int64 `json:"orgs"`
}

// parseAccountMap strips JSONC comments and trailing commas, then
// decodes the override document. Org keys must be integers, logins
// non-empty, member IDs positive; logins are lowercased so lookups
// match GitHub's case-insensitive treatment.
func parseAccountMap(data []byte) (map[int64]map[string]int64, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var document accountMapDocument
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	overrides := make(map[int64]map[string]int64, len(document.Orgs))
	for orgKey, logins := range document.Orgs {
		orgID, err := strconv.ParseInt(orgKey, 10, 64)
		if err != nil || orgID <= 0 {
			return nil, fmt.Errorf("org key %q is not a positive integer", orgKey)
		}
		orgOverrides := make(map[string]int64, len(logins))
		for login, memberID := range logins {
			login = strings.ToLower(strings.TrimSpace(login))
			if login == "" {
				return nil, fmt.Errorf("org %d has an empty login key", orgID)
			}
			if memberID <= 0 {
				return nil, fmt.Errorf("org %d login %q: member id must be positive, got %d", orgID, login, memberID)
			}
			orgOverrides[login] = memberID
		}
		overrides[orgID] = orgOverrides
	}
	return overrides, nil
}
