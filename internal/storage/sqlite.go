package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates and initializes a SQLite database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL DEFAULT '',
		tool_call_id    TEXT NOT NULL DEFAULT '',
		tool_calls      TEXT NOT NULL DEFAULT '[]',
		created_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calendar_events (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		location         TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT 'other',
		reminder_minutes INTEGER NOT NULL DEFAULT 30,
		recurrence       TEXT NOT NULL DEFAULT 'none',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS todo_tasks (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		completed    INTEGER NOT NULL DEFAULT 0,
		priority     TEXT NOT NULL DEFAULT 'medium',
		due_date     TEXT,
		category     TEXT NOT NULL DEFAULT '',
		created_by   TEXT NOT NULL DEFAULT 'user',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_events_owner_start ON calendar_events(owner_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON todo_tasks(owner_id, completed);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Conversation Operations ---

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.OwnerID, conv.Title, fmtTime(conv.CreatedAt), fmtTime(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM conversations WHERE id=? AND owner_id=?`, id, ownerID)

	var conv Conversation
	var created, updated string
	err := row.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	conv.CreatedAt = parseTime(created)
	conv.UpdatedAt = parseTime(updated)
	return &conv, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, ownerID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, created_at, updated_at
		FROM conversations WHERE owner_id=? ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		var conv Conversation
		var created, updated string
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.CreatedAt = parseTime(created)
		conv.UpdatedAt = parseTime(updated)
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

// TouchConversation bumps updated_at and optionally replaces the title
// (empty title leaves it alone).
func (s *SQLiteStore) TouchConversation(ctx context.Context, id, ownerID, title string, at time.Time) error {
	var err error
	if title != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE conversations SET title=?, updated_at=? WHERE id=? AND owner_id=?`,
			title, fmtTime(at), id, ownerID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE conversations SET updated_at=? WHERE id=? AND owner_id=?`,
			fmtTime(at), id, ownerID)
	}
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Message Operations ---

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	toolCalls := msg.ToolCallsJSON
	if toolCalls == "" {
		toolCalls = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, tool_call_id, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.ToolCallID, toolCalls, fmtTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the last limit messages of a conversation in
// transcript order, oldest first. limit <= 0 means no limit.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, tool_call_id, tool_calls, created_at
		FROM messages WHERE conversation_id=? ORDER BY seq`
	args := []any{conversationID}
	if limit > 0 {
		// Take the tail of the transcript, then restore ascending order.
		query = `
			SELECT id, conversation_id, role, content, tool_call_id, tool_calls, created_at FROM (
				SELECT seq, id, conversation_id, role, content, tool_call_id, tool_calls, created_at
				FROM messages WHERE conversation_id=? ORDER BY seq DESC LIMIT ?
			) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		var created string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ToolCallID, &msg.ToolCallsJSON, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = parseTime(created)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// --- Calendar Event Operations ---

func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *CalendarEvent) error {
	if !ev.EndTime.After(ev.StartTime) {
		return fmt.Errorf("%w: end %s start %s", ErrInvalidTimeRange, ev.EndTime, ev.StartTime)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, owner_id, title, description, start_time, end_time,
			location, category, reminder_minutes, recurrence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OwnerID, ev.Title, ev.Description, fmtTime(ev.StartTime), fmtTime(ev.EndTime),
		ev.Location, ev.Category, ev.ReminderMinutes, ev.Recurrence,
		fmtTime(ev.CreatedAt), fmtTime(ev.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id, ownerID string) (*CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, eventSelect+` WHERE id=? AND owner_id=?`, id, ownerID)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return ev, nil
}

// ListEvents returns events whose start time falls inside the optional
// [start, end] window, ordered by start time. limit <= 0 means no limit.
func (s *SQLiteStore) ListEvents(ctx context.Context, ownerID string, start, end *time.Time, limit int) ([]*CalendarEvent, error) {
	query := eventSelect + ` WHERE owner_id=?`
	args := []any{ownerID}
	if start != nil {
		query += ` AND start_time>=?`
		args = append(args, fmtTime(*start))
	}
	if end != nil {
		query += ` AND start_time<=?`
		args = append(args, fmtTime(*end))
	}
	query += ` ORDER BY start_time`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListEventsByOwner returns every event the owner has, in insertion order.
// This is the store's natural order that entity resolution ties break on.
func (s *SQLiteStore) ListEventsByOwner(ctx context.Context, ownerID string) ([]*CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, eventSelect+` WHERE owner_id=? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events by owner: %w", err)
	}
	defer rows.Close()

	var events []*CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) UpdateEvent(ctx context.Context, id, ownerID string, upd EventUpdate) (*CalendarEvent, error) {
	ev, err := s.GetEvent(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		ev.Title = *upd.Title
	}
	if upd.Description != nil {
		ev.Description = *upd.Description
	}
	if upd.StartTime != nil {
		ev.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		ev.EndTime = *upd.EndTime
	}
	if upd.Location != nil {
		ev.Location = *upd.Location
	}
	if upd.Category != nil {
		ev.Category = NormalizeCategory(*upd.Category)
	}
	if upd.ReminderMinutes != nil {
		ev.ReminderMinutes = *upd.ReminderMinutes
	}
	if upd.Recurrence != nil {
		ev.Recurrence = NormalizeRecurrence(*upd.Recurrence)
	}
	if !ev.EndTime.After(ev.StartTime) {
		return nil, fmt.Errorf("%w: end %s start %s", ErrInvalidTimeRange, ev.EndTime, ev.StartTime)
	}
	ev.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE calendar_events SET title=?, description=?, start_time=?, end_time=?,
			location=?, category=?, reminder_minutes=?, recurrence=?, updated_at=?
		WHERE id=? AND owner_id=?`,
		ev.Title, ev.Description, fmtTime(ev.StartTime), fmtTime(ev.EndTime),
		ev.Location, ev.Category, ev.ReminderMinutes, ev.Recurrence,
		fmtTime(ev.UpdatedAt), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return ev, nil
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Todo Task Operations ---

func (s *SQLiteStore) CreateTask(ctx context.Context, task *TodoTask) error {
	var due any
	if task.DueDate != nil {
		due = fmtTime(*task.DueDate)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todo_tasks (id, owner_id, title, description, completed, priority,
			due_date, category, created_by, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		task.ID, task.OwnerID, task.Title, task.Description, boolToInt(task.Completed),
		task.Priority, due, task.Category, task.CreatedBy,
		fmtTime(task.CreatedAt), fmtTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id, ownerID string) (*TodoTask, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+` WHERE id=? AND owner_id=?`, id, ownerID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, ownerID string, filter TaskFilter, sort TaskSort, limit int) ([]*TodoTask, error) {
	query := taskSelect + ` WHERE owner_id=?`
	args := []any{ownerID}
	switch filter {
	case TaskFilterActive:
		query += ` AND completed=0`
	case TaskFilterCompleted:
		query += ` AND completed=1`
	}
	switch sort {
	case TaskSortInsertion:
		query += ` ORDER BY created_at, id`
	case TaskSortDueDate:
		query += ` ORDER BY due_date IS NULL, due_date, created_at DESC`
	case TaskSortPriority:
		query += ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC`
	default:
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TodoTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id, ownerID string, upd TaskUpdate) (*TodoTask, error) {
	task, err := s.GetTask(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.Priority != nil {
		task.Priority = NormalizePriority(*upd.Priority)
	}
	if upd.DueDate != nil {
		due := *upd.DueDate
		task.DueDate = &due
	}
	if upd.ClearDue {
		task.DueDate = nil
	}
	if upd.Category != nil {
		task.Category = *upd.Category
	}
	if upd.Completed != nil && *upd.Completed != task.Completed {
		task.Completed = *upd.Completed
		if task.Completed {
			task.CompletedAt = &now
		} else {
			task.CompletedAt = nil
		}
	}
	task.UpdatedAt = now

	var due, completedAt any
	if task.DueDate != nil {
		due = fmtTime(*task.DueDate)
	}
	if task.CompletedAt != nil {
		completedAt = fmtTime(*task.CompletedAt)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE todo_tasks SET title=?, description=?, completed=?, priority=?,
			due_date=?, category=?, updated_at=?, completed_at=?
		WHERE id=? AND owner_id=?`,
		task.Title, task.Description, boolToInt(task.Completed), task.Priority,
		due, task.Category, fmtTime(task.UpdatedAt), completedAt, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM todo_tasks WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

const eventSelect = `
	SELECT id, owner_id, title, description, start_time, end_time,
		location, category, reminder_minutes, recurrence, created_at, updated_at
	FROM calendar_events`

const taskSelect = `
	SELECT id, owner_id, title, description, completed, priority,
		due_date, category, created_by, created_at, updated_at, completed_at
	FROM todo_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*CalendarEvent, error) {
	var ev CalendarEvent
	var start, end, created, updated string
	if err := row.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &ev.Description, &start, &end,
		&ev.Location, &ev.Category, &ev.ReminderMinutes, &ev.Recurrence, &created, &updated); err != nil {
		return nil, err
	}
	ev.StartTime = parseTime(start)
	ev.EndTime = parseTime(end)
	ev.CreatedAt = parseTime(created)
	ev.UpdatedAt = parseTime(updated)
	return &ev, nil
}

func scanTask(row rowScanner) (*TodoTask, error) {
	var task TodoTask
	var completed int
	var due, completedAt sql.NullString
	var created, updated string
	if err := row.Scan(&task.ID, &task.OwnerID, &task.Title, &task.Description, &completed,
		&task.Priority, &due, &task.Category, &task.CreatedBy, &created, &updated, &completedAt); err != nil {
		return nil, err
	}
	task.Completed = completed != 0
	task.CreatedAt = parseTime(created)
	task.UpdatedAt = parseTime(updated)
	if due.Valid {
		t := parseTime(due.String)
		task.DueDate = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		task.CompletedAt = &t
	}
	return &task, nil
}

// Timestamps are stored in UTC with a fixed-width fractional second so
// that string comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
