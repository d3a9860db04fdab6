// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slate-foundation/slate/lib/schema/task"
)

const testWebhookSecret = "test-secret-for-hmac"

// signPayload computes the HMAC-SHA256 signature for a webhook body.
func signPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type notifiedMutation struct {
	taskID int64
	origin task.Origin
}

// webhookFixture wires a WebhookHandler over the engine fixture with
// a plain (unsealed) delivery archive. Notifications are collected
// instead of dispatched.
type webhookFixture struct {
	*engineFixture
	handler *WebhookHandler
	archive *DeliveryArchive

	mu       sync.Mutex
	notified []notifiedMutation
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	fx := &webhookFixture{engineFixture: newEngineFixture(t)}

	archive, err := NewDeliveryArchive("")
	if err != nil {
		t.Fatalf("NewDeliveryArchive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	fx.archive = archive

	fx.handler = NewWebhookHandler(WebhookHandlerConfig{
		Secret:  []byte(testWebhookSecret),
		Store:   fx.store,
		Archive: archive,
		Engine:  fx.engine,
		Notify: func(taskID int64, origin task.Origin) {
			fx.mu.Lock()
			defer fx.mu.Unlock()
			fx.notified = append(fx.notified, notifiedMutation{taskID: taskID, origin: origin})
		},
		Clock:  fx.clock,
		Logger: testLogger(t),
	})
	return fx
}

func (fx *webhookFixture) notifications() []notifiedMutation {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]notifiedMutation(nil), fx.notified...)
}

// deliver posts a signed webhook request and returns the recorder.
func (fx *webhookFixture) deliver(t *testing.T, eventType, deliveryID string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	request.Header.Set("X-Hub-Signature-256", signPayload([]byte(testWebhookSecret), body))
	request.Header.Set("X-GitHub-Event", eventType)
	if deliveryID != "" {
		request.Header.Set("X-GitHub-Delivery", deliveryID)
	}
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, request)
	return recorder
}

// issuesBody builds a raw issues-event payload as GitHub delivers it.
func issuesBody(t *testing.T, action, repo string, issue map[string]any) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"action":     action,
		"issue":      issue,
		"repository": map[string]any{"full_name": repo},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

// --- Request validation ---

func TestWebhookRejectsNonPOST(t *testing.T) {
	fx := newWebhookFixture(t)

	methods := []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			request := httptest.NewRequest(method, "/webhook", nil)
			recorder := httptest.NewRecorder()
			fx.handler.ServeHTTP(recorder, request)

			if recorder.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", recorder.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestWebhookRejectsEmptyBody(t *testing.T) {
	fx := newWebhookFixture(t)

	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(""))
	request.Header.Set("X-Hub-Signature-256", "sha256=irrelevant")
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	fx := newWebhookFixture(t)

	body := `{"action":"opened"}`
	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	request.Header.Set("X-Hub-Signature-256", "sha256="+strings.Repeat("ab", 32))
	request.Header.Set("X-GitHub-Event", "issues")
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if len(fx.notifications()) != 0 {
		t.Error("unauthenticated delivery reached the import pipeline")
	}
}

func TestWebhookRejectsMissingEventType(t *testing.T) {
	fx := newWebhookFixture(t)

	body := []byte(`{"action":"opened"}`)
	request := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	request.Header.Set("X-Hub-Signature-256", signPayload([]byte(testWebhookSecret), body))
	// No X-GitHub-Event header.
	recorder := httptest.NewRecorder()
	fx.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

// --- Event handling ---

func TestWebhookAcknowledgesPing(t *testing.T) {
	fx := newWebhookFixture(t)

	recorder := fx.deliver(t, "ping", "dlv-ping", []byte(`{"zen":"Design for failure."}`))
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
}

func TestWebhookImportsIssuesDelivery(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()
	fx.seedIssue(31, &fakeIssue{
		title:     "Broken pagination",
		body:      "Page two repeats page one.",
		labels:    []string{"bug", "in-progress"},
		assignees: []string{"alice"},
	})

	// Labels as objects and both assignee forms, as GitHub sends
	// them.
	body := issuesBody(t, "opened", fx.board.Repo, map[string]any{
		"number":    31,
		"title":     "Broken pagination",
		"state":     "open",
		"labels":    []map[string]any{{"name": "bug"}, {"name": "in-progress"}},
		"assignee":  map[string]any{"login": "alice"},
		"assignees": []map[string]any{{"login": "alice"}},
	})

	recorder := fx.deliver(t, "issues", "dlv-31", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	imported, err := fx.store.TaskByIssue(ctx, fx.board.ID, 31)
	if err != nil {
		t.Fatalf("TaskByIssue: %v", err)
	}
	if imported == nil {
		t.Fatal("delivery did not create a task")
	}
	if imported.Status != task.StatusInProgress {
		t.Errorf("status = %q, want in_progress", imported.Status)
	}
	if imported.AssigneeID != fx.alice.ID {
		t.Errorf("assignee = %d, want member %d", imported.AssigneeID, fx.alice.ID)
	}

	notified := fx.notifications()
	if len(notified) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notified))
	}
	if notified[0].taskID != imported.ID || notified[0].origin != task.OriginExternal {
		t.Errorf("notification = %+v, want task %d with external origin", notified[0], imported.ID)
	}

	// The delivery is archived and decodes back to the exact body.
	archived, err := fx.store.DeliveryByID(ctx, "dlv-31")
	if err != nil {
		t.Fatalf("DeliveryByID: %v", err)
	}
	if archived == nil {
		t.Fatal("delivery not archived")
	}
	if archived.Event != "issues" || archived.Action != "opened" || archived.Repo != fx.board.Repo {
		t.Errorf("archived metadata = %s/%s/%s", archived.Event, archived.Action, archived.Repo)
	}
	decoded, err := fx.archive.Decode(archived)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, body) {
		t.Error("archived payload does not round-trip")
	}
}

func TestWebhookCoarseUpdateAction(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	// Coarse "update" action, closed state, bare-string labels. The
	// issue does not exist on the tracker, so the import falls back
	// to the payload; the blocked label overrides the closed state.
	body := issuesBody(t, "update", fx.board.Repo, map[string]any{
		"number": 42,
		"title":  "X",
		"state":  "closed",
		"labels": []string{"blocked"},
	})

	recorder := fx.deliver(t, "issues", "dlv-42", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	imported, err := fx.store.TaskByIssue(ctx, fx.board.ID, 42)
	if err != nil {
		t.Fatalf("TaskByIssue: %v", err)
	}
	if imported == nil {
		t.Fatal("delivery did not create a task")
	}
	if imported.Status != task.StatusBlocked {
		t.Errorf("status = %q, want blocked (label overrides closed state)", imported.Status)
	}
	if imported.Title != "X" {
		t.Errorf("title = %q, want the payload title", imported.Title)
	}
}

func TestWebhookDeduplicatesDeliveries(t *testing.T) {
	fx := newWebhookFixture(t)
	fx.seedIssue(31, &fakeIssue{title: "Broken pagination"})
	body := issuesBody(t, "opened", fx.board.Repo, map[string]any{
		"number": 31, "title": "Broken pagination", "state": "open",
	})

	if recorder := fx.deliver(t, "issues", "dlv-dup", body); recorder.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", recorder.Code)
	}
	if recorder := fx.deliver(t, "issues", "dlv-dup", body); recorder.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d", recorder.Code)
	}
	if got := len(fx.notifications()); got != 1 {
		t.Errorf("notifications = %d, want 1 (duplicate must not re-import)", got)
	}

	// Past the window the same delivery ID is processed again.
	fx.clock.Advance(deduplicationWindow + time.Minute)
	if recorder := fx.deliver(t, "issues", "dlv-dup", body); recorder.Code != http.StatusOK {
		t.Fatalf("post-window delivery status = %d", recorder.Code)
	}
	if got := len(fx.notifications()); got != 2 {
		t.Errorf("notifications = %d, want 2 after the window expired", got)
	}
}

func TestWebhookRejectsUnboundRepository(t *testing.T) {
	fx := newWebhookFixture(t)
	body := issuesBody(t, "opened", "acme/unbound", map[string]any{
		"number": 5, "title": "Stray", "state": "open",
	})

	recorder := fx.deliver(t, "issues", "dlv-stray", body)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
	if len(fx.notifications()) != 0 {
		t.Error("rejected delivery produced a notification")
	}

	// Rejected deliveries are not recorded as handled: GitHub's
	// retry of the same delivery ID must reach the pipeline again,
	// not die in the dedup window.
	recorder = fx.deliver(t, "issues", "dlv-stray", body)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("retry status = %d, want %d again", recorder.Code, http.StatusNotFound)
	}
}

func TestWebhookIgnoresUnimportableAction(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()
	body := issuesBody(t, "pinned", fx.board.Repo, map[string]any{
		"number": 8, "title": "Sticky", "state": "open",
	})

	recorder := fx.deliver(t, "issues", "dlv-pin", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if len(fx.notifications()) != 0 {
		t.Error("ignored action produced a notification")
	}

	// Still archived: the operator can replay it after an upgrade
	// that handles the action.
	archived, err := fx.store.DeliveryByID(ctx, "dlv-pin")
	if err != nil {
		t.Fatalf("DeliveryByID: %v", err)
	}
	if archived == nil {
		t.Error("ignored delivery was not archived")
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	fx := newWebhookFixture(t)
	ctx := context.Background()

	recorder := fx.deliver(t, "push", "dlv-push", []byte(`{"ref":"refs/heads/main"}`))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if len(fx.notifications()) != 0 {
		t.Error("push event produced a notification")
	}
	archived, err := fx.store.DeliveryByID(ctx, "dlv-push")
	if err != nil {
		t.Fatalf("DeliveryByID: %v", err)
	}
	if archived != nil {
		t.Error("non-issues event was archived")
	}
}

func TestWebhookAcknowledgesMalformedPayload(t *testing.T) {
	fx := newWebhookFixture(t)

	// No issue number: normalization fails, but a retry would not
	// fix it, so the delivery is acknowledged.
	body := []byte(`{"action":"opened","issue":{"title":"No number"}}`)
	recorder := fx.deliver(t, "issues", "dlv-bad", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if len(fx.notifications()) != 0 {
		t.Error("malformed payload produced a notification")
	}
}
