// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/slate-foundation/slate/lib/clock"
	"github.com/slate-foundation/slate/lib/schema/task"
	"github.com/slate-foundation/slate/lib/service"
)

// maxWebhookBodySize caps accepted webhook payloads. GitHub's
// documented maximum is ~25 MB; 32 MB gives headroom.
const maxWebhookBodySize = 32 * 1024 * 1024

// deduplicationWindow is how long delivery IDs are tracked for replay
// protection. GitHub retries within minutes, so an hour is
// conservative.
const deduplicationWindow = 1 * time.Hour

// importableActions is the set of issues-event actions that can change
// mirrored task state. GitHub delivers the specific verbs; the coarse
// "create"/"update" pair arrives from older forwarding setups and is
// accepted as an alias. Anything else is acknowledged and ignored.
var importableActions = map[string]bool{
	"opened":     true,
	"edited":     true,
	"closed":     true,
	"reopened":   true,
	"labeled":    true,
	"unlabeled":  true,
	"assigned":   true,
	"unassigned": true,
	"create":     true,
	"update":     true,
}

// WebhookHandler ingests GitHub webhook deliveries: it verifies the
// HMAC-SHA256 signature, deduplicates delivery IDs, archives accepted
// issues deliveries, and feeds them into the import pipeline. The
// board is resolved from the payload repository; deliveries for an
// unbound or sync-disabled repository are rejected with 404 so the
// misconfiguration shows up in GitHub's delivery log.
type WebhookHandler struct {
	secret  []byte
	store   *Store
	archive *DeliveryArchive
	engine  *SyncEngine
	notify  func(taskID int64, origin task.Origin)
	clock   clock.Clock
	logger  *slog.Logger

	// deliveries tracks recently handled delivery IDs. Only 200
	// responses are recorded: GitHub retries rejected deliveries with
	// the same ID, and the retry must not be swallowed as a
	// duplicate.
	mu         sync.Mutex
	deliveries map[string]time.Time
}

// WebhookHandlerConfig configures a WebhookHandler. All fields are
// required.
type WebhookHandlerConfig struct {
	// Secret is the HMAC-SHA256 webhook secret shared with GitHub.
	Secret []byte

	// Store archives accepted deliveries.
	Store *Store

	// Archive encodes delivery payloads for storage.
	Archive *DeliveryArchive

	// Engine runs the import for each accepted issues delivery.
	Engine *SyncEngine

	// Notify is called after a successful import with the mutated
	// task ID and the external origin; the dispatcher's origin guard
	// keeps the mutation from echoing back out as a push.
	Notify func(taskID int64, origin task.Origin)

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewWebhookHandler creates a webhook handler. Panics on missing
// configuration — these are wiring errors, not runtime conditions.
func NewWebhookHandler(config WebhookHandlerConfig) *WebhookHandler {
	if len(config.Secret) == 0 {
		panic("WebhookHandler: Secret is required")
	}
	if config.Store == nil || config.Archive == nil || config.Engine == nil {
		panic("WebhookHandler: Store, Archive, and Engine are required")
	}
	if config.Notify == nil {
		panic("WebhookHandler: Notify callback is required")
	}
	if config.Clock == nil {
		panic("WebhookHandler: Clock is required")
	}
	if config.Logger == nil {
		panic("WebhookHandler: Logger is required")
	}
	return &WebhookHandler{
		secret:     config.Secret,
		store:      config.Store,
		archive:    config.Archive,
		engine:     config.Engine,
		notify:     config.Notify,
		clock:      config.Clock,
		logger:     config.Logger,
		deliveries: make(map[string]time.Time),
	}
}

// ServeHTTP handles a single webhook request.
func (h *WebhookHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	// Read the body first — HMAC verification runs over the raw
	// bytes as delivered.
	body, err := io.ReadAll(io.LimitReader(request.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("webhook: failed to read body", "error", err)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}
	if len(body) == 0 {
		http.Error(writer, "", http.StatusBadRequest)
		return
	}

	signature := request.Header.Get("X-Hub-Signature-256")
	if err := service.VerifyWebhookHMAC(h.secret, body, signature); err != nil {
		h.logger.Warn("webhook: HMAC verification failed",
			"error", err,
			"remote_addr", request.RemoteAddr,
		)
		// 401 with no information disclosure.
		http.Error(writer, "", http.StatusUnauthorized)
		return
	}

	eventType := request.Header.Get("X-GitHub-Event")
	deliveryID := request.Header.Get("X-GitHub-Delivery")
	if eventType == "" {
		h.logger.Warn("webhook: missing X-GitHub-Event header")
		http.Error(writer, "", http.StatusBadRequest)
		return
	}

	if deliveryID != "" && h.seenDelivery(deliveryID) {
		h.logger.Debug("webhook: duplicate delivery, ignoring",
			"delivery_id", deliveryID,
			"event_type", eventType,
		)
		// 200 so GitHub does not retry.
		writer.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Info("webhook received",
		"event_type", eventType,
		"delivery_id", deliveryID,
	)

	status := h.processDelivery(request.Context(), eventType, deliveryID, body)
	if status != http.StatusOK {
		http.Error(writer, "", status)
		return
	}
	if deliveryID != "" {
		h.rememberDelivery(deliveryID)
	}
	writer.WriteHeader(http.StatusOK)
}

// processDelivery handles a verified, non-duplicate delivery and
// returns the HTTP status to answer with.
func (h *WebhookHandler) processDelivery(ctx context.Context, eventType, deliveryID string, body []byte) int {
	switch eventType {
	case "issues":
	case "ping":
		// Sent when the webhook is first configured.
		h.logger.Info("webhook ping", "delivery_id", deliveryID)
		return http.StatusOK
	default:
		h.logger.Debug("webhook: unhandled event type, ignoring",
			"event_type", eventType,
			"delivery_id", deliveryID,
		)
		return http.StatusOK
	}

	event, err := parseIssuesEvent(body)
	if err != nil {
		// Retrying will not fix a malformed payload.
		h.logger.Error("webhook: malformed issues payload",
			"delivery_id", deliveryID,
			"error", err,
		)
		return http.StatusOK
	}

	h.archiveDelivery(ctx, deliveryID, event, body)

	if !importableActions[event.Action] {
		h.logger.Debug("webhook: action does not affect mirrored state, ignoring",
			"action", event.Action,
			"repo", event.Repo,
			"issue", event.Issue.Number,
		)
		return http.StatusOK
	}

	result, err := h.engine.ImportIssue(ctx, event.Issue, event.Repo, 0)
	if err != nil {
		if errors.Is(err, ErrBoardNotConfigured) {
			h.logger.Warn("webhook: delivery rejected",
				"repo", event.Repo,
				"issue", event.Issue.Number,
				"error", err,
			)
			return http.StatusNotFound
		}
		h.logger.Error("webhook: import failed",
			"repo", event.Repo,
			"issue", event.Issue.Number,
			"error", err,
		)
		return http.StatusInternalServerError
	}

	h.notify(result.Task.ID, task.OriginExternal)
	return http.StatusOK
}

// archiveDelivery stores the delivery for later inspection and
// replay. Archive failures are logged, never fatal: losing the
// archived copy must not lose the import.
func (h *WebhookHandler) archiveDelivery(ctx context.Context, deliveryID string, event *issuesEvent, body []byte) {
	if deliveryID == "" {
		return
	}
	delivery := Delivery{
		DeliveryID: deliveryID,
		Event:      "issues",
		Action:     event.Action,
		Repo:       event.Repo,
		ReceivedAt: h.clock.Now().UTC(),
	}
	if err := h.archive.Encode(body, &delivery); err != nil {
		h.logger.Warn("webhook: archive encode failed", "delivery_id", deliveryID, "error", err)
		return
	}
	if err := h.store.InsertDelivery(ctx, &delivery); err != nil {
		h.logger.Warn("webhook: archive write failed", "delivery_id", deliveryID, "error", err)
	}
}

// seenDelivery reports whether the delivery was already handled within
// the deduplication window. Expired entries are pruned on every check;
// the map holds at most an hour of deliveries, so the sweep is cheap.
func (h *WebhookHandler) seenDelivery(deliveryID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	for id, handledAt := range h.deliveries {
		if now.Sub(handledAt) > deduplicationWindow {
			delete(h.deliveries, id)
		}
	}
	_, exists := h.deliveries[deliveryID]
	return exists
}

func (h *WebhookHandler) rememberDelivery(deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries[deliveryID] = h.clock.Now()
}
