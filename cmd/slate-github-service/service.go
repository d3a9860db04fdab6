// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slate-foundation/slate/lib/clock"
	"github.com/slate-foundation/slate/lib/codec"
	"github.com/slate-foundation/slate/lib/github"
	"github.com/slate-foundation/slate/lib/schema/task"
	"github.com/slate-foundation/slate/lib/service"
	"github.com/slate-foundation/slate/lib/version"
)

// webhookInstaller is the slice of the GitHub client used by
// install-webhook. Kept separate from trackerClient: webhook
// management is an admin operation, not part of the sync loop.
type webhookInstaller interface {
	CreateRepoWebhook(ctx context.Context, owner, repo string, request github.CreateWebhookRequest) (*github.Webhook, error)
}

// ControlService implements the admin actions served on the daemon's
// unix socket. Every action is a single request-response exchange;
// sync actions answer with the engine's typed results so callers can
// assert on outcomes instead of scraping logs.
type ControlService struct {
	store         *Store
	engine        *SyncEngine
	archive       *DeliveryArchive
	resolver      *AccountResolver
	clients       map[string]trackerClient
	webhookSecret []byte
	clock         clock.Clock
	logger        *slog.Logger
	startedAt     time.Time
}

// ControlServiceConfig configures a ControlService. All fields are
// required.
type ControlServiceConfig struct {
	Store    *Store
	Engine   *SyncEngine
	Archive  *DeliveryArchive
	Resolver *AccountResolver

	// Clients is the credential-name → API client map shared with the
	// engine. bind-board validates credential names against it;
	// install-webhook selects the client that manages the repo hook.
	Clients map[string]trackerClient

	// WebhookSecret is handed to GitHub when installing a webhook, so
	// the installed hook signs deliveries with the secret this daemon
	// verifies.
	WebhookSecret []byte

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewControlService creates the admin action set. Panics on missing
// configuration — these are wiring errors, not runtime conditions.
func NewControlService(config ControlServiceConfig) *ControlService {
	if config.Store == nil || config.Engine == nil || config.Archive == nil || config.Resolver == nil {
		panic("ControlService: Store, Engine, Archive, and Resolver are required")
	}
	if config.Clients == nil {
		panic("ControlService: Clients is required")
	}
	if len(config.WebhookSecret) == 0 {
		panic("ControlService: WebhookSecret is required")
	}
	if config.Clock == nil {
		panic("ControlService: Clock is required")
	}
	if config.Logger == nil {
		panic("ControlService: Logger is required")
	}
	return &ControlService{
		store:         config.Store,
		engine:        config.Engine,
		archive:       config.Archive,
		resolver:      config.Resolver,
		clients:       config.Clients,
		webhookSecret: config.WebhookSecret,
		clock:         config.Clock,
		logger:        config.Logger,
		startedAt:     config.Clock.Now(),
	}
}

// Register installs all admin actions on the socket server.
func (c *ControlService) Register(server *service.SocketServer) {
	server.Handle("status", c.handleStatus)
	server.Handle("push-task", c.handlePushTask)
	server.Handle("import-issue", c.handleImportIssue)
	server.Handle("list-boards", c.handleListBoards)
	server.Handle("list-tasks", c.handleListTasks)
	server.Handle("create-board", c.handleCreateBoard)
	server.Handle("bind-board", c.handleBindBoard)
	server.Handle("link-member", c.handleLinkMember)
	server.Handle("resolve-account", c.handleResolveAccount)
	server.Handle("list-deliveries", c.handleListDeliveries)
	server.Handle("replay-delivery", c.handleReplayDelivery)
	server.Handle("install-webhook", c.handleInstallWebhook)
}

// --- status ---

type statusResponse struct {
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	ArchiveSealed bool        `json:"archive_sealed"`
	Credentials   int         `json:"credentials"`
	Store         *StoreStats `json:"store"`
}

func (c *ControlService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return statusResponse{
		Version:       version.Info(),
		UptimeSeconds: int64(c.clock.Now().Sub(c.startedAt).Seconds()),
		ArchiveSealed: c.archive.Sealing(),
		Credentials:   len(c.clients),
		Store:         stats,
	}, nil
}

// --- push-task ---

type pushTaskRequest struct {
	TaskID int64 `cbor:"task_id"`
}

// handlePushTask runs a manual push: no fingerprint gate, so it always
// reconciles the issue even when nothing changed locally.
func (c *ControlService) handlePushTask(ctx context.Context, raw []byte) (any, error) {
	var request pushTaskRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.TaskID <= 0 {
		return nil, errors.New("missing required field: task_id")
	}
	return c.engine.PushTaskState(ctx, request.TaskID, TriggerManual), nil
}

// --- import-issue ---

type importIssueRequest struct {
	Repo        string `cbor:"repo"`
	IssueNumber int    `cbor:"issue_number"`
	BoardID     int64  `cbor:"board_id"`
}

// handleImportIssue imports one issue on demand. The payload carries
// only the issue number; the importer fetches current state from the
// API, so this also repairs tasks that drifted from their issue.
func (c *ControlService) handleImportIssue(ctx context.Context, raw []byte) (any, error) {
	var request importIssueRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.IssueNumber <= 0 {
		return nil, errors.New("missing required field: issue_number")
	}
	if request.Repo == "" && request.BoardID <= 0 {
		return nil, errors.New("one of repo or board_id is required")
	}
	payload := IssuePayload{Number: request.IssueNumber}
	return c.engine.ImportIssue(ctx, payload, request.Repo, request.BoardID)
}

// --- list-boards / list-tasks ---

type boardListResponse struct {
	Boards []task.Board `json:"boards"`
}

func (c *ControlService) handleListBoards(ctx context.Context, raw []byte) (any, error) {
	boards, err := c.store.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	return boardListResponse{Boards: boards}, nil
}

type listTasksRequest struct {
	BoardID int64 `cbor:"board_id"`
}

type taskListResponse struct {
	Tasks []task.Task `json:"tasks"`
}

func (c *ControlService) handleListTasks(ctx context.Context, raw []byte) (any, error) {
	var request listTasksRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.BoardID <= 0 {
		return nil, errors.New("missing required field: board_id")
	}
	if board, err := c.store.BoardByID(ctx, request.BoardID); err != nil {
		return nil, err
	} else if board == nil {
		return nil, fmt.Errorf("board %d not found", request.BoardID)
	}
	tasks, err := c.store.ListTasks(ctx, request.BoardID)
	if err != nil {
		return nil, err
	}
	return taskListResponse{Tasks: tasks}, nil
}

// --- create-board ---

type createBoardRequest struct {
	OrgID   int64                `cbor:"org_id"`
	Name    string               `cbor:"name"`
	Columns []createColumnFields `cbor:"columns"`
}

type createColumnFields struct {
	Name   string `cbor:"name"`
	Status string `cbor:"status"`
}

type createBoardResponse struct {
	Board   *task.Board   `json:"board"`
	Columns []task.Column `json:"columns"`
}

// handleCreateBoard creates a board with the given columns, or with
// one column per canonical status when none are given.
func (c *ControlService) handleCreateBoard(ctx context.Context, raw []byte) (any, error) {
	var request createBoardRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	board := &task.Board{OrgID: request.OrgID, Name: request.Name}

	var columns []task.Column
	if len(request.Columns) == 0 {
		for i, status := range task.Statuses() {
			columns = append(columns, task.Column{
				Name:     statusOption(status),
				Position: i,
				Status:   status,
			})
		}
	} else {
		for i, column := range request.Columns {
			columns = append(columns, task.Column{
				Name:     column.Name,
				Position: i,
				Status:   task.Status(column.Status),
			})
		}
	}

	if err := c.store.CreateBoard(ctx, board, columns); err != nil {
		return nil, err
	}
	c.logger.Info("board created",
		"board_id", board.ID,
		"org_id", board.OrgID,
		"name", board.Name,
		"columns", len(columns),
	)
	return createBoardResponse{Board: board, Columns: columns}, nil
}

// --- bind-board ---

type bindBoardRequest struct {
	BoardID       int64  `cbor:"board_id"`
	Repo          string `cbor:"repo"`
	ProjectNumber int    `cbor:"project_number"`
	Credential    string `cbor:"credential"`
	SyncEnabled   bool   `cbor:"sync_enabled"`
}

// handleBindBoard binds a board to a repository and credential.
// Credential names are checked against the configured client set so a
// typo surfaces here instead of as a skipped push later.
func (c *ControlService) handleBindBoard(ctx context.Context, raw []byte) (any, error) {
	var request bindBoardRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.BoardID <= 0 {
		return nil, errors.New("missing required field: board_id")
	}
	if request.Repo != "" {
		if _, _, err := task.SplitRepo(request.Repo); err != nil {
			return nil, err
		}
	}
	if request.Credential != "" {
		if _, ok := c.clients[request.Credential]; !ok {
			return nil, fmt.Errorf("unknown credential %q", request.Credential)
		}
	}
	if request.SyncEnabled && (request.Repo == "" || request.Credential == "") {
		return nil, errors.New("enabling sync requires repo and credential")
	}

	board, err := c.store.BoardByID(ctx, request.BoardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, fmt.Errorf("board %d not found", request.BoardID)
	}

	err = c.store.UpdateBoardBinding(ctx, request.BoardID, request.Repo,
		request.ProjectNumber, request.Credential, request.SyncEnabled)
	if err != nil {
		return nil, err
	}
	c.logger.Info("board binding updated",
		"board_id", request.BoardID,
		"repo", request.Repo,
		"project_number", request.ProjectNumber,
		"credential", request.Credential,
		"sync_enabled", request.SyncEnabled,
	)

	board, err = c.store.BoardByID(ctx, request.BoardID)
	if err != nil {
		return nil, err
	}
	return board, nil
}

// --- link-member / resolve-account ---

type linkMemberRequest struct {
	OrgID          int64  `cbor:"org_id"`
	MemberID       int64  `cbor:"member_id"`
	GitHubUsername string `cbor:"github_username"`
}

// handleLinkMember stores a member's GitHub login. An empty username
// unlinks.
func (c *ControlService) handleLinkMember(ctx context.Context, raw []byte) (any, error) {
	var request linkMemberRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.OrgID <= 0 {
		return nil, errors.New("missing required field: org_id")
	}
	if request.MemberID <= 0 {
		return nil, errors.New("missing required field: member_id")
	}
	if err := c.store.LinkMember(ctx, request.OrgID, request.MemberID, request.GitHubUsername); err != nil {
		return nil, err
	}
	c.logger.Info("member linked",
		"org_id", request.OrgID,
		"member_id", request.MemberID,
		"github_username", request.GitHubUsername,
	)
	return c.store.MemberByID(ctx, request.MemberID)
}

type resolveAccountRequest struct {
	OrgID    int64  `cbor:"org_id"`
	Username string `cbor:"username"`
}

type resolveAccountResponse struct {
	Member *task.Member `json:"member"`
}

func (c *ControlService) handleResolveAccount(ctx context.Context, raw []byte) (any, error) {
	var request resolveAccountRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.OrgID <= 0 {
		return nil, errors.New("missing required field: org_id")
	}
	if request.Username == "" {
		return nil, errors.New("missing required field: username")
	}
	member, err := c.resolver.MemberForLogin(ctx, request.OrgID, request.Username)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("no member in org %d is linked to %q", request.OrgID, request.Username)
	}
	return resolveAccountResponse{Member: member}, nil
}

// --- list-deliveries / replay-delivery ---

type listDeliveriesRequest struct {
	Limit int `cbor:"limit"`
}

type deliveryListResponse struct {
	Deliveries []Delivery `json:"deliveries"`
}

func (c *ControlService) handleListDeliveries(ctx context.Context, raw []byte) (any, error) {
	var request listDeliveriesRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	deliveries, err := c.store.RecentDeliveries(ctx, request.Limit)
	if err != nil {
		return nil, err
	}
	return deliveryListResponse{Deliveries: deliveries}, nil
}

type replayDeliveryRequest struct {
	DeliveryID string `cbor:"delivery_id"`
}

// handleReplayDelivery re-runs the import for an archived delivery.
// This is the corrective action after a failed or ignored import; the
// importer re-fetches from the API, so replaying a stale delivery
// converges on current issue state rather than resurrecting old state.
func (c *ControlService) handleReplayDelivery(ctx context.Context, raw []byte) (any, error) {
	var request replayDeliveryRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.DeliveryID == "" {
		return nil, errors.New("missing required field: delivery_id")
	}

	delivery, err := c.store.DeliveryByID(ctx, request.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery %q is not archived", request.DeliveryID)
	}

	body, err := c.archive.Decode(delivery)
	if err != nil {
		return nil, err
	}
	event, err := parseIssuesEvent(body)
	if err != nil {
		return nil, fmt.Errorf("archived payload: %w", err)
	}

	c.logger.Info("replaying delivery",
		"delivery_id", delivery.DeliveryID,
		"action", event.Action,
		"repo", event.Repo,
		"issue", event.Issue.Number,
	)
	return c.engine.ImportIssue(ctx, event.Issue, event.Repo, 0)
}

// --- install-webhook ---

type installWebhookRequest struct {
	BoardID   int64  `cbor:"board_id"`
	PublicURL string `cbor:"public_url"`
}

type installWebhookResponse struct {
	HookID int64  `json:"hook_id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// handleInstallWebhook creates the issues webhook on the board's
// repository, signed with this daemon's webhook secret.
func (c *ControlService) handleInstallWebhook(ctx context.Context, raw []byte) (any, error) {
	var request installWebhookRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.BoardID <= 0 {
		return nil, errors.New("missing required field: board_id")
	}
	if request.PublicURL == "" {
		return nil, errors.New("missing required field: public_url")
	}

	board, err := c.store.BoardByID(ctx, request.BoardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, fmt.Errorf("board %d not found", request.BoardID)
	}
	if board.Repo == "" {
		return nil, fmt.Errorf("board %d is not bound to a repository", board.ID)
	}
	if board.Credential == "" {
		return nil, fmt.Errorf("board %d has no credential bound", board.ID)
	}

	client, ok := c.clients[board.Credential]
	if !ok {
		return nil, fmt.Errorf("credential %q is not configured", board.Credential)
	}
	installer, ok := client.(webhookInstaller)
	if !ok {
		return nil, fmt.Errorf("credential %q cannot manage webhooks", board.Credential)
	}

	owner, name, err := task.SplitRepo(board.Repo)
	if err != nil {
		return nil, err
	}

	webhook, err := installer.CreateRepoWebhook(ctx, owner, name, github.CreateWebhookRequest{
		Events: []string{"issues"},
		Config: github.CreateWebhookConfig{
			URL:         request.PublicURL,
			ContentType: "json",
			Secret:      string(c.webhookSecret),
			InsecureSSL: "0",
		},
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("webhook installed",
		"board_id", board.ID,
		"repo", board.Repo,
		"hook_id", webhook.ID,
		"url", request.PublicURL,
	)
	return installWebhookResponse{
		HookID: webhook.ID,
		URL:    webhook.Config.URL,
		Active: webhook.Active,
	}, nil
}
