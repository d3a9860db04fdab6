// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/slate-foundation/slate/lib/clock"
	"github.com/slate-foundation/slate/lib/schema/task"
	"github.com/slate-foundation/slate/lib/sqlitepool"
)

// Store manages SQLite storage for boards, columns, members, tasks,
// push fingerprints, and the webhook delivery archive. The schema is
// owned by the service: OpenStore creates missing tables on startup.
//
// All writes that touch more than one row run in IMMEDIATE
// transactions. Reads of single entities return (nil, nil) when the
// row does not exist — callers decide whether absence is an error.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// StoreConfig holds the parameters for creating a store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Clock provides timestamps for created/updated columns.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// storeSchema creates all tables and indexes. Timestamps are Unix
// seconds. A task's github_issue_number is NULL when the task is not
// mirrored, so the partial unique index only constrains mirrored tasks.
const storeSchema = `
	CREATE TABLE IF NOT EXISTS boards (
		id                    INTEGER PRIMARY KEY,
		org_id                INTEGER NOT NULL,
		name                  TEXT NOT NULL,
		sync_enabled          INTEGER NOT NULL DEFAULT 0,
		github_repo           TEXT NOT NULL DEFAULT '',
		github_project_number INTEGER NOT NULL DEFAULT 0,
		credential            TEXT NOT NULL DEFAULT '',
		created_at            INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_boards_repo ON boards(github_repo);

	CREATE TABLE IF NOT EXISTS board_columns (
		id       INTEGER PRIMARY KEY,
		board_id INTEGER NOT NULL REFERENCES boards(id),
		name     TEXT NOT NULL,
		position INTEGER NOT NULL,
		status   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_columns_board ON board_columns(board_id, position);

	CREATE TABLE IF NOT EXISTS members (
		id              INTEGER PRIMARY KEY,
		org_id          INTEGER NOT NULL,
		display_name    TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		github_username TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_members_github ON members(org_id, github_username);

	CREATE TABLE IF NOT EXISTS tasks (
		id                  INTEGER PRIMARY KEY,
		board_id            INTEGER NOT NULL REFERENCES boards(id),
		column_id           INTEGER NOT NULL DEFAULT 0,
		title               TEXT NOT NULL,
		body                TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL,
		sort_order          INTEGER NOT NULL DEFAULT 0,
		assignee_id         INTEGER NOT NULL DEFAULT 0,
		github_issue_number INTEGER,
		last_origin         TEXT NOT NULL DEFAULT 'internal',
		created_at          INTEGER NOT NULL,
		updated_at          INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_issue
		ON tasks(board_id, github_issue_number)
		WHERE github_issue_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(board_id, sort_order);

	CREATE TABLE IF NOT EXISTS push_state (
		task_id     INTEGER PRIMARY KEY REFERENCES tasks(id) ON DELETE CASCADE,
		fingerprint BLOB NOT NULL,
		pushed_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		id           INTEGER PRIMARY KEY,
		delivery_id  TEXT NOT NULL UNIQUE,
		event        TEXT NOT NULL,
		action       TEXT NOT NULL DEFAULT '',
		repo         TEXT NOT NULL DEFAULT '',
		received_at  INTEGER NOT NULL,
		payload      BLOB NOT NULL,
		payload_size INTEGER NOT NULL,
		compression  TEXT NOT NULL,
		sealed       INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_received ON deliveries(received_at);
`

// OpenStore creates a store backed by SQLite. The database file is
// created if it does not exist; missing tables are created on open.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("task store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("task store: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		// The pool leaves referential integrity to the service; this
		// schema declares its foreign keys, so enforce them.
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON", nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("task store: %w", err)
	}

	store := &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}

	if err := store.initSchema(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("task store: creating schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) initSchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteScript(conn, storeSchema, nil)
}

// --- Boards ---

// CreateBoard inserts a board and its status columns in one
// transaction. Assigns board.ID and the column IDs and BoardIDs.
func (s *Store) CreateBoard(ctx context.Context, board *task.Board, columns []task.Column) (err error) {
	if err := board.Validate(); err != nil {
		return fmt.Errorf("task store: create board: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: create board: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("task store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	board.CreatedAt = s.clock.Now().UTC()
	err = sqlitex.Execute(conn,
		`INSERT INTO boards (org_id, name, sync_enabled, github_repo, github_project_number, credential, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				board.OrgID,
				board.Name,
				boolToInt(board.SyncEnabled),
				board.Repo,
				board.ProjectNumber,
				board.Credential,
				board.CreatedAt.Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("task store: insert board: %w", err)
	}
	board.ID = conn.LastInsertRowID()

	for i := range columns {
		columns[i].BoardID = board.ID
		// Validation failure rolls the whole board back.
		if err = columns[i].Validate(); err != nil {
			return fmt.Errorf("task store: create board: %w", err)
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO board_columns (board_id, name, position, status) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{columns[i].BoardID, columns[i].Name, columns[i].Position, string(columns[i].Status)},
			})
		if err != nil {
			return fmt.Errorf("task store: insert column %q: %w", columns[i].Name, err)
		}
		columns[i].ID = conn.LastInsertRowID()
	}

	return nil
}

// BoardByID returns the board with the given ID, or (nil, nil) when it
// does not exist.
func (s *Store) BoardByID(ctx context.Context, id int64) (*task.Board, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: board %d: %w", id, err)
	}
	defer s.pool.Put(conn)

	var board *task.Board
	err = sqlitex.Execute(conn,
		`SELECT id, org_id, name, sync_enabled, github_repo, github_project_number, credential, created_at
		 FROM boards WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				board = scanBoard(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: board %d: %w", id, err)
	}
	return board, nil
}

// BoardByRepo returns the board bound to the given "owner/name"
// repository, or (nil, nil) when no board is bound to it. When several
// boards bind the same repository, a sync-enabled one wins; ties break
// to the oldest.
func (s *Store) BoardByRepo(ctx context.Context, repo string) (*task.Board, error) {
	if repo == "" {
		return nil, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: board for %s: %w", repo, err)
	}
	defer s.pool.Put(conn)

	var board *task.Board
	err = sqlitex.Execute(conn,
		`SELECT id, org_id, name, sync_enabled, github_repo, github_project_number, credential, created_at
		 FROM boards WHERE github_repo = ?
		 ORDER BY sync_enabled DESC, id ASC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{repo},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				board = scanBoard(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: board for %s: %w", repo, err)
	}
	return board, nil
}

// ListBoards returns all boards ordered by ID.
func (s *Store) ListBoards(ctx context.Context) ([]task.Board, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: list boards: %w", err)
	}
	defer s.pool.Put(conn)

	var boards []task.Board
	err = sqlitex.Execute(conn,
		`SELECT id, org_id, name, sync_enabled, github_repo, github_project_number, credential, created_at
		 FROM boards ORDER BY id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				boards = append(boards, *scanBoard(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: list boards: %w", err)
	}
	return boards, nil
}

// UpdateBoardBinding replaces a board's sync configuration: repository,
// project number, credential name, and the enabled flag. Returns an
// error when the board does not exist.
func (s *Store) UpdateBoardBinding(ctx context.Context, boardID int64, repo string, projectNumber int, credential string, syncEnabled bool) error {
	if repo != "" {
		if _, _, err := task.SplitRepo(repo); err != nil {
			return fmt.Errorf("task store: bind board %d: %w", boardID, err)
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: bind board %d: %w", boardID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE boards SET github_repo = ?, github_project_number = ?, credential = ?, sync_enabled = ?
		 WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{repo, projectNumber, credential, boolToInt(syncEnabled), boardID},
		})
	if err != nil {
		return fmt.Errorf("task store: bind board %d: %w", boardID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("task store: board %d not found", boardID)
	}
	return nil
}

// Columns returns a board's status columns ordered by position.
func (s *Store) Columns(ctx context.Context, boardID int64) ([]task.Column, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: columns for board %d: %w", boardID, err)
	}
	defer s.pool.Put(conn)

	var columns []task.Column
	err = sqlitex.Execute(conn,
		`SELECT id, board_id, name, position, status FROM board_columns
		 WHERE board_id = ? ORDER BY position`,
		&sqlitex.ExecOptions{
			Args: []any{boardID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				columns = append(columns, task.Column{
					ID:       stmt.ColumnInt64(0),
					BoardID:  stmt.ColumnInt64(1),
					Name:     stmt.ColumnText(2),
					Position: stmt.ColumnInt(3),
					Status:   task.Status(stmt.ColumnText(4)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: columns for board %d: %w", boardID, err)
	}
	return columns, nil
}

// --- Members ---

// CreateMember inserts a member and assigns member.ID.
func (s *Store) CreateMember(ctx context.Context, member *task.Member) error {
	if err := member.Validate(); err != nil {
		return fmt.Errorf("task store: create member: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: create member: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO members (org_id, display_name, email, github_username) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{member.OrgID, member.DisplayName, member.Email, member.GitHubUsername},
		})
	if err != nil {
		return fmt.Errorf("task store: create member: %w", err)
	}
	member.ID = conn.LastInsertRowID()
	return nil
}

// LinkMember sets a member's GitHub username. An empty username clears
// the link. Returns an error when the member does not exist in the
// given organization.
func (s *Store) LinkMember(ctx context.Context, orgID, memberID int64, username string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: link member %d: %w", memberID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE members SET github_username = ? WHERE id = ? AND org_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{username, memberID, orgID},
		})
	if err != nil {
		return fmt.Errorf("task store: link member %d: %w", memberID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("task store: member %d not found in org %d", memberID, orgID)
	}
	return nil
}

// MemberByID returns the member with the given ID, or (nil, nil) when
// it does not exist.
func (s *Store) MemberByID(ctx context.Context, id int64) (*task.Member, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: member %d: %w", id, err)
	}
	defer s.pool.Put(conn)

	var member *task.Member
	err = sqlitex.Execute(conn,
		`SELECT id, org_id, display_name, email, github_username FROM members WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				member = scanMember(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: member %d: %w", id, err)
	}
	return member, nil
}

// MemberByGitHubUsername returns the member in the given organization
// whose linked GitHub username matches, or (nil, nil) when none does.
// GitHub logins are case-insensitive, so the comparison is too.
func (s *Store) MemberByGitHubUsername(ctx context.Context, orgID int64, username string) (*task.Member, error) {
	if username == "" {
		return nil, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: member by username %q: %w", username, err)
	}
	defer s.pool.Put(conn)

	var member *task.Member
	err = sqlitex.Execute(conn,
		`SELECT id, org_id, display_name, email, github_username FROM members
		 WHERE org_id = ? AND github_username = ? COLLATE NOCASE LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{orgID, username},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				member = scanMember(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: member by username %q: %w", username, err)
	}
	return member, nil
}

// --- Tasks ---

// CreateTask inserts a task and assigns task.ID. CreatedAt and
// UpdatedAt are set to the current time.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("task store: create task: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: create task: %w", err)
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.LastOrigin == "" {
		t.LastOrigin = task.OriginInternal
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO tasks (board_id, column_id, title, body, status, sort_order, assignee_id,
		                    github_issue_number, last_origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.BoardID,
				t.ColumnID,
				t.Title,
				t.Body,
				string(t.Status),
				t.SortOrder,
				t.AssigneeID,
				issueNumberArg(t.IssueNumber),
				string(t.LastOrigin),
				now.Unix(),
				now.Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("task store: create task: %w", err)
	}
	t.ID = conn.LastInsertRowID()
	return nil
}

// UpdateTask replaces a task's mutable fields by ID and refreshes
// UpdatedAt. Returns an error when the task does not exist.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("task store: update task %d: %w", t.ID, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: update task %d: %w", t.ID, err)
	}
	defer s.pool.Put(conn)

	t.UpdatedAt = s.clock.Now().UTC()
	err = sqlitex.Execute(conn,
		`UPDATE tasks SET column_id = ?, title = ?, body = ?, status = ?, sort_order = ?,
		                  assignee_id = ?, github_issue_number = ?, last_origin = ?, updated_at = ?
		 WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.ColumnID,
				t.Title,
				t.Body,
				string(t.Status),
				t.SortOrder,
				t.AssigneeID,
				issueNumberArg(t.IssueNumber),
				string(t.LastOrigin),
				t.UpdatedAt.Unix(),
				t.ID,
			},
		})
	if err != nil {
		return fmt.Errorf("task store: update task %d: %w", t.ID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("task store: task %d not found", t.ID)
	}
	return nil
}

// TaskByID returns the task with the given ID, or (nil, nil) when it
// does not exist.
func (s *Store) TaskByID(ctx context.Context, id int64) (*task.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: task %d: %w", id, err)
	}
	defer s.pool.Put(conn)

	var result *task.Task
	err = sqlitex.Execute(conn,
		taskSelect+` WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				result = scanTask(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: task %d: %w", id, err)
	}
	return result, nil
}

// TaskByIssue returns the task mirroring the given issue number on the
// given board, or (nil, nil) when no task mirrors it.
func (s *Store) TaskByIssue(ctx context.Context, boardID int64, issueNumber int) (*task.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: task for issue #%d: %w", issueNumber, err)
	}
	defer s.pool.Put(conn)

	var result *task.Task
	err = sqlitex.Execute(conn,
		taskSelect+` WHERE board_id = ? AND github_issue_number = ?`,
		&sqlitex.ExecOptions{
			Args: []any{boardID, issueNumber},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				result = scanTask(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: task for issue #%d: %w", issueNumber, err)
	}
	return result, nil
}

// ListTasks returns a board's tasks ordered by sort order, then ID.
func (s *Store) ListTasks(ctx context.Context, boardID int64) ([]task.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: list tasks for board %d: %w", boardID, err)
	}
	defer s.pool.Put(conn)

	var tasks []task.Task
	err = sqlitex.Execute(conn,
		taskSelect+` WHERE board_id = ? ORDER BY sort_order, id`,
		&sqlitex.ExecOptions{
			Args: []any{boardID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tasks = append(tasks, *scanTask(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: list tasks for board %d: %w", boardID, err)
	}
	return tasks, nil
}

// UpsertImportedTask creates or updates the task mirroring
// (t.BoardID, t.IssueNumber) in one transaction. On update, the
// existing task's sort order and creation time are kept; title, body,
// status, column, assignee, and origin come from t. Sets t.ID and
// reports whether a new task was created.
func (s *Store) UpsertImportedTask(ctx context.Context, t *task.Task) (created bool, err error) {
	if !t.Mirrored() {
		return false, fmt.Errorf("task store: upsert: task has no issue number")
	}
	if err := t.Validate(); err != nil {
		return false, fmt.Errorf("task store: upsert: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("task store: upsert issue #%d: %w", t.IssueNumber, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return false, fmt.Errorf("task store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var existingID int64
	err = sqlitex.Execute(conn,
		`SELECT id FROM tasks WHERE board_id = ? AND github_issue_number = ?`,
		&sqlitex.ExecOptions{
			Args: []any{t.BoardID, t.IssueNumber},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				existingID = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("task store: upsert issue #%d: %w", t.IssueNumber, err)
	}

	now := s.clock.Now().UTC()
	if existingID != 0 {
		t.ID = existingID
		t.UpdatedAt = now
		err = sqlitex.Execute(conn,
			`UPDATE tasks SET column_id = ?, title = ?, body = ?, status = ?,
			                  assignee_id = ?, last_origin = ?, updated_at = ?
			 WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{
					t.ColumnID,
					t.Title,
					t.Body,
					string(t.Status),
					t.AssigneeID,
					string(t.LastOrigin),
					now.Unix(),
					existingID,
				},
			})
		if err != nil {
			return false, fmt.Errorf("task store: upsert issue #%d: %w", t.IssueNumber, err)
		}
		return false, nil
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	err = sqlitex.Execute(conn,
		`INSERT INTO tasks (board_id, column_id, title, body, status, sort_order, assignee_id,
		                    github_issue_number, last_origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.BoardID,
				t.ColumnID,
				t.Title,
				t.Body,
				string(t.Status),
				t.SortOrder,
				t.AssigneeID,
				t.IssueNumber,
				string(t.LastOrigin),
				now.Unix(),
				now.Unix(),
			},
		})
	if err != nil {
		return false, fmt.Errorf("task store: upsert issue #%d: %w", t.IssueNumber, err)
	}
	t.ID = conn.LastInsertRowID()
	return true, nil
}

// --- Push fingerprints ---

// PushFingerprint returns the stored fingerprint for a task's last
// successful push, or nil when the task has never been pushed.
func (s *Store) PushFingerprint(ctx context.Context, taskID int64) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: fingerprint for task %d: %w", taskID, err)
	}
	defer s.pool.Put(conn)

	var fingerprint []byte
	err = sqlitex.Execute(conn,
		`SELECT fingerprint FROM push_state WHERE task_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{taskID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fingerprint = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, fingerprint)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: fingerprint for task %d: %w", taskID, err)
	}
	return fingerprint, nil
}

// SetPushFingerprint records the fingerprint of a task's last
// successful push, replacing any previous value.
func (s *Store) SetPushFingerprint(ctx context.Context, taskID int64, fingerprint []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: set fingerprint for task %d: %w", taskID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO push_state (task_id, fingerprint, pushed_at) VALUES (?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET fingerprint = excluded.fingerprint, pushed_at = excluded.pushed_at`,
		&sqlitex.ExecOptions{
			Args: []any{taskID, fingerprint, s.clock.Now().UTC().Unix()},
		})
	if err != nil {
		return fmt.Errorf("task store: set fingerprint for task %d: %w", taskID, err)
	}
	return nil
}

// --- Delivery archive ---

// Delivery is one archived webhook delivery. Payload holds the
// archived bytes as produced by the delivery archive (compressed,
// optionally sealed); PayloadSize is the original body size.
type Delivery struct {
	ID          int64     `json:"id"`
	DeliveryID  string    `json:"delivery_id"`
	Event       string    `json:"event"`
	Action      string    `json:"action,omitempty"`
	Repo        string    `json:"repo,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	Payload     []byte    `json:"-"`
	PayloadSize int       `json:"payload_size"`
	Compression string    `json:"compression"`
	Sealed      bool      `json:"sealed"`
}

// InsertDelivery archives a webhook delivery. Inserting the same
// delivery ID twice is a no-op: GitHub redeliveries after a service
// restart land here when the in-memory dedup window is empty, and the
// first archived copy wins.
func (s *Store) InsertDelivery(ctx context.Context, delivery *Delivery) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("task store: archive delivery %s: %w", delivery.DeliveryID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO deliveries (delivery_id, event, action, repo, received_at, payload, payload_size, compression, sealed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				delivery.DeliveryID,
				delivery.Event,
				delivery.Action,
				delivery.Repo,
				delivery.ReceivedAt.Unix(),
				delivery.Payload,
				delivery.PayloadSize,
				delivery.Compression,
				boolToInt(delivery.Sealed),
			},
		})
	if err != nil {
		return fmt.Errorf("task store: archive delivery %s: %w", delivery.DeliveryID, err)
	}
	if conn.Changes() > 0 {
		delivery.ID = conn.LastInsertRowID()
	}
	return nil
}

// RecentDeliveries returns archive metadata for the most recent
// deliveries, newest first. Payload bytes are not loaded; use
// DeliveryByID to fetch one for replay.
func (s *Store) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: list deliveries: %w", err)
	}
	defer s.pool.Put(conn)

	var deliveries []Delivery
	err = sqlitex.Execute(conn,
		`SELECT id, delivery_id, event, action, repo, received_at, payload_size, compression, sealed
		 FROM deliveries ORDER BY received_at DESC, id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				deliveries = append(deliveries, Delivery{
					ID:          stmt.ColumnInt64(0),
					DeliveryID:  stmt.ColumnText(1),
					Event:       stmt.ColumnText(2),
					Action:      stmt.ColumnText(3),
					Repo:        stmt.ColumnText(4),
					ReceivedAt:  time.Unix(stmt.ColumnInt64(5), 0).UTC(),
					PayloadSize: stmt.ColumnInt(6),
					Compression: stmt.ColumnText(7),
					Sealed:      stmt.ColumnInt(8) != 0,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: list deliveries: %w", err)
	}
	return deliveries, nil
}

// DeliveryByID returns one archived delivery with its payload, or
// (nil, nil) when the delivery ID is not archived.
func (s *Store) DeliveryByID(ctx context.Context, deliveryID string) (*Delivery, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: delivery %s: %w", deliveryID, err)
	}
	defer s.pool.Put(conn)

	var delivery *Delivery
	err = sqlitex.Execute(conn,
		`SELECT id, delivery_id, event, action, repo, received_at, payload, payload_size, compression, sealed
		 FROM deliveries WHERE delivery_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{deliveryID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(6))
				stmt.ColumnBytes(6, payload)
				delivery = &Delivery{
					ID:          stmt.ColumnInt64(0),
					DeliveryID:  stmt.ColumnText(1),
					Event:       stmt.ColumnText(2),
					Action:      stmt.ColumnText(3),
					Repo:        stmt.ColumnText(4),
					ReceivedAt:  time.Unix(stmt.ColumnInt64(5), 0).UTC(),
					Payload:     payload,
					PayloadSize: stmt.ColumnInt(7),
					Compression: stmt.ColumnText(8),
					Sealed:      stmt.ColumnInt(9) != 0,
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("task store: delivery %s: %w", deliveryID, err)
	}
	return delivery, nil
}

// --- Service status ---

// StoreStats summarizes store contents for the status action.
type StoreStats struct {
	Boards     int64 `json:"boards"`
	Tasks      int64 `json:"tasks"`
	Mirrored   int64 `json:"mirrored_tasks"`
	Members    int64 `json:"members"`
	Deliveries int64 `json:"deliveries"`
}

// Stats counts boards, tasks, mirrored tasks, members, and archived
// deliveries.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("task store: stats: %w", err)
	}
	defer s.pool.Put(conn)

	stats := &StoreStats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM boards", &stats.Boards},
		{"SELECT COUNT(*) FROM tasks", &stats.Tasks},
		{"SELECT COUNT(*) FROM tasks WHERE github_issue_number IS NOT NULL", &stats.Mirrored},
		{"SELECT COUNT(*) FROM members", &stats.Members},
		{"SELECT COUNT(*) FROM deliveries", &stats.Deliveries},
	}
	for _, count := range counts {
		err := sqlitex.Execute(conn, count.query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				*count.dest = stmt.ColumnInt64(0)
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("task store: stats: %w", err)
		}
	}
	return stats, nil
}

// --- Scan helpers ---

// taskSelect is the shared column list for task queries, consumed by
// scanTask in the same order.
const taskSelect = `SELECT id, board_id, column_id, title, body, status, sort_order, assignee_id,
	github_issue_number, last_origin, created_at, updated_at FROM tasks`

func scanTask(stmt *sqlite.Stmt) *task.Task {
	// Columns: id(0), board_id(1), column_id(2), title(3), body(4),
	// status(5), sort_order(6), assignee_id(7),
	// github_issue_number(8), last_origin(9), created_at(10),
	// updated_at(11)
	t := &task.Task{
		ID:         stmt.ColumnInt64(0),
		BoardID:    stmt.ColumnInt64(1),
		ColumnID:   stmt.ColumnInt64(2),
		Title:      stmt.ColumnText(3),
		Body:       stmt.ColumnText(4),
		Status:     task.Status(stmt.ColumnText(5)),
		SortOrder:  stmt.ColumnInt(6),
		AssigneeID: stmt.ColumnInt64(7),
		LastOrigin: task.Origin(stmt.ColumnText(9)),
		CreatedAt:  time.Unix(stmt.ColumnInt64(10), 0).UTC(),
		UpdatedAt:  time.Unix(stmt.ColumnInt64(11), 0).UTC(),
	}
	if !stmt.ColumnIsNull(8) {
		t.IssueNumber = stmt.ColumnInt(8)
	}
	return t
}

func scanBoard(stmt *sqlite.Stmt) *task.Board {
	// Columns: id(0), org_id(1), name(2), sync_enabled(3),
	// github_repo(4), github_project_number(5), credential(6),
	// created_at(7)
	return &task.Board{
		ID:            stmt.ColumnInt64(0),
		OrgID:         stmt.ColumnInt64(1),
		Name:          stmt.ColumnText(2),
		SyncEnabled:   stmt.ColumnInt(3) != 0,
		Repo:          stmt.ColumnText(4),
		ProjectNumber: stmt.ColumnInt(5),
		Credential:    stmt.ColumnText(6),
		CreatedAt:     time.Unix(stmt.ColumnInt64(7), 0).UTC(),
	}
}

func scanMember(stmt *sqlite.Stmt) *task.Member {
	// Columns: id(0), org_id(1), display_name(2), email(3),
	// github_username(4)
	return &task.Member{
		ID:             stmt.ColumnInt64(0),
		OrgID:          stmt.ColumnInt64(1),
		DisplayName:    stmt.ColumnText(2),
		Email:          stmt.ColumnText(3),
		GitHubUsername: stmt.ColumnText(4),
	}
}

// issueNumberArg maps the Go convention (0 = not mirrored) to the SQL
// convention (NULL = not mirrored) so the partial unique index ignores
// unmirrored tasks.
func issueNumberArg(issueNumber int) any {
	if issueNumber > 0 {
		return issueNumber
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
