// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/slate-foundation/slate/lib/codec"
)

// dialTimeout is how long to wait for the Unix socket connection. The
// daemon accepts immediately when running; a longer wait means it is
// not listening.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long to wait for the daemon to respond.
// Push and import actions call the GitHub API, so this must comfortably
// exceed the daemon's per-request timeout.
const responseReadTimeout = 120 * time.Second

// maxResponseSize limits how much response data the client reads. Must
// be at least as large as the server's request limit since list
// responses can carry full task payloads.
const maxResponseSize = 1024 * 1024

// ServiceError is an error response from the daemon. The daemon
// returned {ok: false} with a message; the transport itself worked.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// ServiceClient calls actions on a daemon's control socket using the
// one-request-per-connection CBOR protocol.
//
// Access control is the socket file's permissions: anyone who can open
// the socket can invoke any action.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient creates a client for the daemon listening on
// socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// Call invokes an action on the daemon. The fields map carries
// action-specific parameters; the "action" field is set by Call. If
// result is non-nil and the response carries a data payload, the
// payload is decoded into result; a data-less success leaves result
// untouched.
//
// A non-OK response is returned as *ServiceError.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %s: %w", action, err)
	}

	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("calling %s: decoding response data: %w", action, err)
		}
	}

	return nil
}

// send performs one request-response cycle on a fresh connection.
func (c *ServiceClient) send(ctx context.Context, request map[string]any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(responseReadTimeout))
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	// Half-close the write side so the server sees EOF after the
	// request. The server decodes exactly one CBOR value, so this is
	// belt and braces rather than framing.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}
