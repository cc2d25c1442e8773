package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or is not visible
// to the requesting owner.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTimeRange is returned when an event write would leave the end
// at or before the start.
var ErrInvalidTimeRange = errors.New("event end is not after start")

// TaskFilter selects tasks by completion status for list operations.
type TaskFilter string

const (
	TaskFilterAll       TaskFilter = "all"
	TaskFilterActive    TaskFilter = "active"
	TaskFilterCompleted TaskFilter = "completed"
)

// TaskSort selects the ordering for task list operations.
type TaskSort string

const (
	TaskSortCreated  TaskSort = "createdAt"
	TaskSortDueDate  TaskSort = "dueDate"
	TaskSortPriority TaskSort = "priority"
	// TaskSortInsertion is oldest first, the order title resolution
	// breaks ties in.
	TaskSortInsertion TaskSort = "insertion"
)

// EventUpdate carries a partial calendar event update; nil fields are
// left unchanged.
type EventUpdate struct {
	Title           *string
	Description     *string
	StartTime       *time.Time
	EndTime         *time.Time
	Location        *string
	Category        *string
	ReminderMinutes *int
	Recurrence      *string
}

// TaskUpdate carries a partial task update; nil fields are left unchanged.
// Setting Completed drives the CompletedAt transition rules.
type TaskUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	Category    *string
}

// ConversationStore persists chat conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]*Conversation, error)
	TouchConversation(ctx context.Context, id, ownerID, title string, at time.Time) error
	DeleteConversation(ctx context.Context, id, ownerID string) error
}

// MessageStore persists transcript messages. Messages are append-only.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// EventStore persists owner-scoped calendar events.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *CalendarEvent) error
	GetEvent(ctx context.Context, id, ownerID string) (*CalendarEvent, error)
	ListEvents(ctx context.Context, ownerID string, start, end *time.Time, limit int) ([]*CalendarEvent, error)
	ListEventsByOwner(ctx context.Context, ownerID string) ([]*CalendarEvent, error)
	UpdateEvent(ctx context.Context, id, ownerID string, upd EventUpdate) (*CalendarEvent, error)
	DeleteEvent(ctx context.Context, id, ownerID string) error
}

// TaskStore persists owner-scoped todo tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *TodoTask) error
	GetTask(ctx context.Context, id, ownerID string) (*TodoTask, error)
	ListTasks(ctx context.Context, ownerID string, filter TaskFilter, sort TaskSort, limit int) ([]*TodoTask, error)
	UpdateTask(ctx context.Context, id, ownerID string, upd TaskUpdate) (*TodoTask, error)
	DeleteTask(ctx context.Context, id, ownerID string) error
}

// Store bundles every repository the service needs; the SQLite
// implementation satisfies all of them with one handle.
type Store interface {
	ConversationStore
	MessageStore
	EventStore
	TaskStore
	Close() error
}
