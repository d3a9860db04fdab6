// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingScope indicates the configured token cannot reach the
// Projects V2 API. Classic tokens need the read:project (or project)
// scope; GitHub reports the gap as a GraphQL error rather than an HTTP
// status, so it is surfaced as this sentinel to keep it distinguishable
// from "project does not exist".
var ErrMissingScope = errors.New("github: token lacks the project scope")

// GraphQLError is an error response from the GraphQL API. GitHub
// returns these with HTTP 200, so they form a separate taxonomy from
// APIError.
type GraphQLError struct {
	Errors []GraphQLErrorItem
}

// GraphQLErrorItem is a single error entry in a GraphQL response.
type GraphQLErrorItem struct {
	Type    string `json:"type"` // "NOT_FOUND", "INSUFFICIENT_SCOPES", ...
	Message string `json:"message"`
}

func (gqlError *GraphQLError) Error() string {
	messages := make([]string, len(gqlError.Errors))
	for i, item := range gqlError.Errors {
		messages[i] = item.Message
	}
	return "github: GraphQL: " + strings.Join(messages, "; ")
}

// isGraphQLNotFound reports whether err is a GraphQL error response in
// which every entry is a NOT_FOUND. Lookups that treat an absent entity
// as "no result" rather than a failure use this to tell the two apart.
func isGraphQLNotFound(err error) bool {
	var gqlError *GraphQLError
	if !errors.As(err, &gqlError) || len(gqlError.Errors) == 0 {
		return false
	}
	for _, item := range gqlError.Errors {
		if item.Type != "NOT_FOUND" {
			return false
		}
	}
	return true
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQL executes a query or mutation against the GraphQL endpoint and
// decodes the data payload into result. Transport-level failures come
// back as *APIError; GraphQL-level errors as *GraphQLError, except
// missing-scope errors which wrap ErrMissingScope.
func (client *Client) graphQL(ctx context.Context, query string, variables map[string]any, result any) error {
	body, _, err := client.do(ctx, http.MethodPost, "/graphql", graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage    `json:"data"`
		Errors []GraphQLErrorItem `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("github: decoding GraphQL response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		for _, item := range envelope.Errors {
			if item.Type == "INSUFFICIENT_SCOPES" {
				return fmt.Errorf("%w: %s", ErrMissingScope, item.Message)
			}
		}
		return &GraphQLError{Errors: envelope.Errors}
	}

	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("github: decoding GraphQL data: %w", err)
		}
	}
	return nil
}
