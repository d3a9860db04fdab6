// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/slate-foundation/slate/lib/codec"
	"github.com/slate-foundation/slate/lib/schema/task"
)

// controlFixture wires the socket action set over the engine fixture.
// Handlers are invoked directly with encoded requests; the socket
// transport itself is covered in lib/service.
type controlFixture struct {
	*engineFixture
	control *ControlService
	archive *DeliveryArchive
}

func newControlFixture(t *testing.T) *controlFixture {
	t.Helper()

	fx := &controlFixture{engineFixture: newEngineFixture(t)}

	archive, err := NewDeliveryArchive("")
	if err != nil {
		t.Fatalf("NewDeliveryArchive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	fx.archive = archive

	fx.control = NewControlService(ControlServiceConfig{
		Store:         fx.store,
		Engine:        fx.engine,
		Archive:       archive,
		Resolver:      fx.resolver,
		Clients:       map[string]trackerClient{"acme": fx.tracker},
		WebhookSecret: []byte(testWebhookSecret),
		Clock:         fx.clock,
		Logger:        testLogger(t),
	})
	return fx
}

// encodeRequest builds the raw CBOR request a socket client would
// send.
func encodeRequest(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := codec.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return raw
}

// --- Status ---

func TestControlStatus(t *testing.T) {
	fx := newControlFixture(t)
	fx.createTask(t, task.StatusTodo, 0, 21)
	fx.clock.Advance(90 * time.Second)

	result, err := fx.control.handleStatus(context.Background(), encodeRequest(t, nil))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	status := result.(statusResponse)

	if status.Version == "" {
		t.Error("version is empty")
	}
	if status.UptimeSeconds != 90 {
		t.Errorf("uptime = %d, want 90", status.UptimeSeconds)
	}
	if status.ArchiveSealed {
		t.Error("archive reported sealed without a key")
	}
	if status.Credentials != 1 {
		t.Errorf("credentials = %d, want 1", status.Credentials)
	}
	if status.Store.Boards != 1 || status.Store.Tasks != 1 || status.Store.Mirrored != 1 {
		t.Errorf("store counts = %+v, want 1 board, 1 task, 1 mirrored", status.Store)
	}
	if status.Store.Members != 1 {
		t.Errorf("members = %d, want 1", status.Store.Members)
	}
}

// --- Sync actions ---

func TestControlPushTask(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()
	fx.tracker.addProject(7)
	created := fx.createTask(t, task.StatusInProgress, fx.alice.ID, 21)
	fx.seedIssue(21, &fakeIssue{title: "Stale", body: "Old.", assignees: []string{"alice"}})

	result, err := fx.control.handlePushTask(ctx, encodeRequest(t, map[string]any{
		"task_id": created.ID,
	}))
	if err != nil {
		t.Fatalf("push-task: %v", err)
	}
	pushed := result.(SyncResult)
	if pushed.Outcome != OutcomeSynced {
		t.Errorf("outcome = %q (%s), want synced", pushed.Outcome, pushed.Reason)
	}
	if got := fx.tracker.issues[21].title; got != created.Title {
		t.Errorf("issue title = %q, want %q", got, created.Title)
	}
}

func TestControlPushTaskNotFoundIsSkip(t *testing.T) {
	fx := newControlFixture(t)

	result, err := fx.control.handlePushTask(context.Background(), encodeRequest(t, map[string]any{
		"task_id": 99999,
	}))
	if err != nil {
		t.Fatalf("push-task: %v", err)
	}
	pushed := result.(SyncResult)
	if pushed.Outcome != OutcomeSkipped || pushed.Reason != "task not found" {
		t.Errorf("result = %+v, want skip with reason %q", pushed, "task not found")
	}
}

func TestControlImportIssue(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()
	fx.seedIssue(31, &fakeIssue{
		title:  "From the tracker",
		labels: []string{"in-progress"},
	})

	result, err := fx.control.handleImportIssue(ctx, encodeRequest(t, map[string]any{
		"repo":         fx.board.Repo,
		"issue_number": 31,
	}))
	if err != nil {
		t.Fatalf("import-issue: %v", err)
	}
	imported := result.(*ImportResult)
	if !imported.Created {
		t.Error("first import did not create the task")
	}
	if imported.Task.Title != "From the tracker" {
		t.Errorf("title = %q, want the fetched title", imported.Task.Title)
	}
	if imported.Task.Status != task.StatusInProgress {
		t.Errorf("status = %q, want in_progress", imported.Task.Status)
	}

	// Importing again, addressed by board instead of repo, updates
	// the same task.
	result, err = fx.control.handleImportIssue(ctx, encodeRequest(t, map[string]any{
		"board_id":     fx.board.ID,
		"issue_number": 31,
	}))
	if err != nil {
		t.Fatalf("second import-issue: %v", err)
	}
	again := result.(*ImportResult)
	if again.Created {
		t.Error("second import created a duplicate task")
	}
	if again.Task.ID != imported.Task.ID {
		t.Errorf("task ID changed across imports: %d then %d", imported.Task.ID, again.Task.ID)
	}
}

// --- Board administration ---

func TestControlListBoardsAndTasks(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()
	created := fx.createTask(t, task.StatusTodo, 0, 0)

	result, err := fx.control.handleListBoards(ctx, encodeRequest(t, nil))
	if err != nil {
		t.Fatalf("list-boards: %v", err)
	}
	boards := result.(boardListResponse)
	if len(boards.Boards) != 1 || boards.Boards[0].ID != fx.board.ID {
		t.Errorf("boards = %+v, want the fixture board", boards.Boards)
	}

	result, err = fx.control.handleListTasks(ctx, encodeRequest(t, map[string]any{
		"board_id": fx.board.ID,
	}))
	if err != nil {
		t.Fatalf("list-tasks: %v", err)
	}
	tasks := result.(taskListResponse)
	if len(tasks.Tasks) != 1 || tasks.Tasks[0].ID != created.ID {
		t.Errorf("tasks = %+v, want the created task", tasks.Tasks)
	}

	_, err = fx.control.handleListTasks(ctx, encodeRequest(t, map[string]any{
		"board_id": 404,
	}))
	if err == nil || !strings.Contains(err.Error(), "board 404 not found") {
		t.Errorf("error = %v, want board-not-found", err)
	}
}

func TestControlCreateBoard(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	// No columns: one per canonical status.
	result, err := fx.control.handleCreateBoard(ctx, encodeRequest(t, map[string]any{
		"org_id": 1,
		"name":   "Roadmap",
	}))
	if err != nil {
		t.Fatalf("create-board: %v", err)
	}
	created := result.(createBoardResponse)
	if created.Board.ID == 0 {
		t.Error("board ID not assigned")
	}
	if len(created.Columns) != len(task.Statuses()) {
		t.Fatalf("columns = %d, want %d", len(created.Columns), len(task.Statuses()))
	}
	if created.Columns[0].Name != "Todo" || created.Columns[4].Name != "Blocked" {
		t.Errorf("default columns = %q..%q, want Todo..Blocked",
			created.Columns[0].Name, created.Columns[4].Name)
	}

	// Explicit columns.
	result, err = fx.control.handleCreateBoard(ctx, encodeRequest(t, map[string]any{
		"org_id": 1,
		"name":   "Lean",
		"columns": []map[string]any{
			{"name": "Inbox", "status": "todo"},
			{"name": "Shipped", "status": "done"},
		},
	}))
	if err != nil {
		t.Fatalf("create-board with columns: %v", err)
	}
	lean := result.(createBoardResponse)
	if len(lean.Columns) != 2 || lean.Columns[1].Status != task.StatusDone {
		t.Errorf("columns = %+v, want Inbox/Shipped", lean.Columns)
	}

	// Invalid board rolls back.
	_, err = fx.control.handleCreateBoard(ctx, encodeRequest(t, map[string]any{
		"name": "No org",
	}))
	if err == nil || !strings.Contains(err.Error(), "org id") {
		t.Errorf("error = %v, want org id validation", err)
	}
}

func TestControlBindBoard(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	board := &task.Board{OrgID: 1, Name: "Widgets"}
	if err := fx.store.CreateBoard(ctx, board, nil); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}

	result, err := fx.control.handleBindBoard(ctx, encodeRequest(t, map[string]any{
		"board_id":       board.ID,
		"repo":           "acme/widgets",
		"project_number": 3,
		"credential":     "acme",
		"sync_enabled":   true,
	}))
	if err != nil {
		t.Fatalf("bind-board: %v", err)
	}
	bound := result.(*task.Board)
	if !bound.Syncable() {
		t.Errorf("board = %+v, want syncable after binding", bound)
	}
	if bound.Repo != "acme/widgets" || bound.ProjectNumber != 3 {
		t.Errorf("binding = %s #%d, want acme/widgets #3", bound.Repo, bound.ProjectNumber)
	}
}

// --- Members ---

func TestControlLinkMemberAndResolve(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	carol := &task.Member{OrgID: 1, DisplayName: "Carol Example"}
	if err := fx.store.CreateMember(ctx, carol); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	result, err := fx.control.handleLinkMember(ctx, encodeRequest(t, map[string]any{
		"org_id":          1,
		"member_id":       carol.ID,
		"github_username": "carol-gh",
	}))
	if err != nil {
		t.Fatalf("link-member: %v", err)
	}
	linked := result.(*task.Member)
	if linked.GitHubUsername != "carol-gh" {
		t.Errorf("username = %q, want carol-gh", linked.GitHubUsername)
	}

	result, err = fx.control.handleResolveAccount(ctx, encodeRequest(t, map[string]any{
		"org_id":   1,
		"username": "Carol-GH",
	}))
	if err != nil {
		t.Fatalf("resolve-account: %v", err)
	}
	resolved := result.(resolveAccountResponse)
	if resolved.Member == nil || resolved.Member.ID != carol.ID {
		t.Errorf("resolved = %+v, want member %d", resolved.Member, carol.ID)
	}

	_, err = fx.control.handleResolveAccount(ctx, encodeRequest(t, map[string]any{
		"org_id":   1,
		"username": "nobody",
	}))
	if err == nil || !strings.Contains(err.Error(), "no member") {
		t.Errorf("error = %v, want no-member", err)
	}
}

// --- Deliveries ---

func TestControlListAndReplayDelivery(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	body := issuesBody(t, "opened", fx.board.Repo, map[string]any{
		"number": 55, "title": "Archived", "state": "open",
	})
	delivery := Delivery{
		DeliveryID: "dlv-replay",
		Event:      "issues",
		Action:     "opened",
		Repo:       fx.board.Repo,
		ReceivedAt: fx.clock.Now().UTC(),
	}
	if err := fx.archive.Encode(body, &delivery); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := fx.store.InsertDelivery(ctx, &delivery); err != nil {
		t.Fatalf("InsertDelivery: %v", err)
	}

	result, err := fx.control.handleListDeliveries(ctx, encodeRequest(t, nil))
	if err != nil {
		t.Fatalf("list-deliveries: %v", err)
	}
	listed := result.(deliveryListResponse)
	if len(listed.Deliveries) != 1 || listed.Deliveries[0].DeliveryID != "dlv-replay" {
		t.Fatalf("deliveries = %+v, want dlv-replay", listed.Deliveries)
	}
	if listed.Deliveries[0].PayloadSize != len(body) {
		t.Errorf("payload size = %d, want %d", listed.Deliveries[0].PayloadSize, len(body))
	}

	// The issue is not on the tracker, so replay falls back to the
	// archived payload.
	result, err = fx.control.handleReplayDelivery(ctx, encodeRequest(t, map[string]any{
		"delivery_id": "dlv-replay",
	}))
	if err != nil {
		t.Fatalf("replay-delivery: %v", err)
	}
	replayed := result.(*ImportResult)
	if !replayed.Created || replayed.Task.Title != "Archived" {
		t.Errorf("replay result = %+v, want a created task titled Archived", replayed)
	}

	_, err = fx.control.handleReplayDelivery(ctx, encodeRequest(t, map[string]any{
		"delivery_id": "dlv-ghost",
	}))
	if err == nil || !strings.Contains(err.Error(), "not archived") {
		t.Errorf("error = %v, want not-archived", err)
	}
}

// --- Webhook installation ---

func TestControlInstallWebhook(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	result, err := fx.control.handleInstallWebhook(ctx, encodeRequest(t, map[string]any{
		"board_id":   fx.board.ID,
		"public_url": "https://sync.example.com/webhook",
	}))
	if err != nil {
		t.Fatalf("install-webhook: %v", err)
	}
	installed := result.(installWebhookResponse)
	if installed.HookID == 0 || !installed.Active {
		t.Errorf("response = %+v, want an active hook", installed)
	}
	if installed.URL != "https://sync.example.com/webhook" {
		t.Errorf("url = %q, want the public URL", installed.URL)
	}

	if len(fx.tracker.hooks) != 1 {
		t.Fatalf("hooks created = %d, want 1", len(fx.tracker.hooks))
	}
	hook := fx.tracker.hooks[0]
	if len(hook.Events) != 1 || hook.Events[0] != "issues" {
		t.Errorf("events = %v, want [issues]", hook.Events)
	}
	if hook.Config.Secret != testWebhookSecret {
		t.Error("installed hook does not carry the daemon's webhook secret")
	}
	if hook.Config.ContentType != "json" {
		t.Errorf("content type = %q, want json", hook.Config.ContentType)
	}
}

func TestControlInstallWebhookRequiresBinding(t *testing.T) {
	fx := newControlFixture(t)
	ctx := context.Background()

	board := &task.Board{OrgID: 1, Name: "Unbound"}
	if err := fx.store.CreateBoard(ctx, board, nil); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}

	_, err := fx.control.handleInstallWebhook(ctx, encodeRequest(t, map[string]any{
		"board_id":   board.ID,
		"public_url": "https://sync.example.com/webhook",
	}))
	if err == nil || !strings.Contains(err.Error(), "not bound to a repository") {
		t.Errorf("error = %v, want unbound-repository", err)
	}
}

// --- Request validation ---

func TestControlRequestValidation(t *testing.T) {
	fx := newControlFixture(t)

	tests := []struct {
		name    string
		handler func(context.Context, []byte) (any, error)
		fields  map[string]any
		want    string
	}{
		{"push_task_missing_id", fx.control.handlePushTask, nil, "task_id"},
		{"import_missing_number", fx.control.handleImportIssue,
			map[string]any{"repo": "acme/platform"}, "issue_number"},
		{"import_missing_target", fx.control.handleImportIssue,
			map[string]any{"issue_number": 3}, "repo or board_id"},
		{"list_tasks_missing_board", fx.control.handleListTasks, nil, "board_id"},
		{"bind_malformed_repo", fx.control.handleBindBoard,
			map[string]any{"board_id": fx.board.ID, "repo": "nonsense"}, "owner/name"},
		{"bind_unknown_credential", fx.control.handleBindBoard,
			map[string]any{"board_id": fx.board.ID, "repo": "acme/x", "credential": "ghost"},
			"unknown credential"},
		{"bind_sync_needs_credential", fx.control.handleBindBoard,
			map[string]any{"board_id": fx.board.ID, "repo": "acme/x", "sync_enabled": true},
			"requires repo and credential"},
		{"link_missing_member", fx.control.handleLinkMember,
			map[string]any{"org_id": 1}, "member_id"},
		{"resolve_missing_username", fx.control.handleResolveAccount,
			map[string]any{"org_id": 1}, "username"},
		{"replay_missing_id", fx.control.handleReplayDelivery, nil, "delivery_id"},
		{"install_missing_url", fx.control.handleInstallWebhook,
			map[string]any{"board_id": fx.board.ID}, "public_url"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.handler(context.Background(), encodeRequest(t, test.fields))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want mention of %q", err, test.want)
			}
		})
	}
}
