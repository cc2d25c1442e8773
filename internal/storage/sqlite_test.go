package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newEvent(owner, title string, start time.Time) *CalendarEvent {
	now := time.Now().UTC()
	return &CalendarEvent{
		ID:              uuid.NewString(),
		OwnerID:         owner,
		Title:           title,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Category:        CategoryMeeting,
		ReminderMinutes: 30,
		Recurrence:      RecurrenceNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newTask(owner, title string) *TodoTask {
	now := time.Now().UTC()
	return &TodoTask{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Title:     title,
		Priority:  PriorityMedium,
		CreatedBy: CreatedByUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestConversationLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	conv := &Conversation{
		ID: uuid.NewString(), OwnerID: "u1", Title: "New Conversation",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetConversation(ctx, conv.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New Conversation" {
		t.Fatalf("title=%q", got.Title)
	}

	// a different owner cannot see it
	if _, err := store.GetConversation(ctx, conv.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get: err=%v", err)
	}

	// a different owner cannot touch it either
	if err := store.TouchConversation(ctx, conv.ID, "u2", "Hijacked", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetConversation(ctx, conv.ID, "u1")
	if got.Title != "New Conversation" {
		t.Fatalf("title after cross-owner touch=%q", got.Title)
	}

	if err := store.TouchConversation(ctx, conv.ID, "u1", "Renamed", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetConversation(ctx, conv.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title after touch=%q", got.Title)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updated_at not bumped: %v / %v", got.UpdatedAt, got.CreatedAt)
	}

	// empty title keeps the existing one
	if err := store.TouchConversation(ctx, conv.ID, "u1", "", now.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetConversation(ctx, conv.ID, "u1")
	if got.Title != "Renamed" {
		t.Fatalf("title after empty touch=%q", got.Title)
	}

	if err := store.DeleteConversation(ctx, conv.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetConversation(ctx, conv.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: err=%v", err)
	}
}

func TestListConversationsRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, title := range []string{"first", "second", "third"} {
		conv := &Conversation{
			ID: uuid.NewString(), OwnerID: "u1", Title: title,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateConversation(ctx, conv); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := store.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 3 {
		t.Fatalf("len=%d", len(convs))
	}
	if convs[0].Title != "third" || convs[2].Title != "first" {
		t.Fatalf("order: %q, %q, %q", convs[0].Title, convs[1].Title, convs[2].Title)
	}
}

func TestMessagesTailAndCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	conv := &Conversation{ID: uuid.NewString(), OwnerID: "u1", Title: "t", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		msg := &Message{
			ID: uuid.NewString(), ConversationID: conv.ID,
			Role: RoleUser, Content: string(rune('a' + i)), CreatedAt: now,
		}
		if err := store.AppendMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	// last 3 in transcript order
	msgs, err := store.ListMessages(ctx, conv.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len=%d", len(msgs))
	}
	if msgs[0].Content != "c" || msgs[2].Content != "e" {
		t.Fatalf("tail: %q, %q, %q", msgs[0].Content, msgs[1].Content, msgs[2].Content)
	}

	// tool call payloads round-trip
	toolMsg := &Message{
		ID: uuid.NewString(), ConversationID: conv.ID, Role: RoleAssistant,
		ToolCallsJSON: `[{"id":"call_1","type":"function","function":{"name":"list_todos","arguments":"{}"}}]`,
		CreatedAt:     now,
	}
	if err := store.AppendMessage(ctx, toolMsg); err != nil {
		t.Fatal(err)
	}
	msgs, _ = store.ListMessages(ctx, conv.ID, 1)
	if msgs[0].ToolCallsJSON == "" || msgs[0].ToolCallsJSON == "[]" {
		t.Fatalf("tool calls lost: %q", msgs[0].ToolCallsJSON)
	}

	// deleting the conversation removes its messages
	if err := store.DeleteConversation(ctx, conv.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	msgs, err = store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages survived delete: %d", len(msgs))
	}
}

func TestEventWindowQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	morning := newEvent("u1", "Standup", day.Add(9*time.Hour))
	evening := newEvent("u1", "Dinner", day.Add(19*time.Hour))
	nextDay := newEvent("u1", "Review", day.Add(33*time.Hour))
	other := newEvent("u2", "Not mine", day.Add(10*time.Hour))
	for _, ev := range []*CalendarEvent{evening, morning, nextDay, other} {
		if err := store.CreateEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	start := day
	end := day.Add(24*time.Hour - time.Nanosecond)
	events, err := store.ListEvents(ctx, "u1", &start, &end, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("len=%d", len(events))
	}
	// ordered by start time despite insertion order
	if events[0].Title != "Standup" || events[1].Title != "Dinner" {
		t.Fatalf("order: %q, %q", events[0].Title, events[1].Title)
	}

	all, err := store.ListEvents(ctx, "u1", nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("unwindowed len=%d", len(all))
	}
}

func TestCreateEventRejectsInvertedRange(t *testing.T) {
	store := newTestStore(t)
	ev := newEvent("u1", "Broken", time.Now().UTC())
	ev.EndTime = ev.StartTime
	if err := store.CreateEvent(context.Background(), ev); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("err=%v", err)
	}
}

func TestUpdateEventMergesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	ev := newEvent("u1", "Sync", start)
	ev.Location = "Room 1"
	if err := store.CreateEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	title := "Team Sync"
	newStart := start.Add(2 * time.Hour)
	newEnd := newStart.Add(30 * time.Minute)
	got, err := store.UpdateEvent(ctx, ev.ID, "u1", EventUpdate{
		Title:     &title,
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Team Sync" {
		t.Fatalf("title=%q", got.Title)
	}
	if got.Location != "Room 1" {
		t.Fatalf("location clobbered: %q", got.Location)
	}
	if !got.StartTime.Equal(newStart) || !got.EndTime.Equal(newEnd) {
		t.Fatalf("times: %v / %v", got.StartTime, got.EndTime)
	}

	bad := start.Add(-time.Hour)
	if _, err := store.UpdateEvent(ctx, ev.ID, "u1", EventUpdate{EndTime: &bad}); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("inverted update err=%v", err)
	}
}

func TestDeleteEventNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.DeleteEvent(context.Background(), uuid.NewString(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestTaskFiltersAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	mk := func(title, priority string, due *time.Time, offset time.Duration) *TodoTask {
		task := newTask("u1", title)
		task.Priority = priority
		task.DueDate = due
		task.CreatedAt = base.Add(offset)
		task.UpdatedAt = task.CreatedAt
		return task
	}
	soon := base.Add(time.Hour)
	later := base.Add(48 * time.Hour)
	tasks := []*TodoTask{
		mk("Pay rent", PriorityHigh, &later, 0),
		mk("Buy milk", PriorityLow, &soon, time.Second),
		mk("Write report", PriorityMedium, nil, 2*time.Second),
	}
	for _, task := range tasks {
		if err := store.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	done := true
	if _, err := store.UpdateTask(ctx, tasks[1].ID, "u1", TaskUpdate{Completed: &done}); err != nil {
		t.Fatal(err)
	}

	active, err := store.ListTasks(ctx, "u1", TaskFilterActive, TaskSortCreated, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active len=%d", len(active))
	}
	// newest first
	if active[0].Title != "Write report" {
		t.Fatalf("active[0]=%q", active[0].Title)
	}

	completed, err := store.ListTasks(ctx, "u1", TaskFilterCompleted, TaskSortCreated, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].Title != "Buy milk" {
		t.Fatalf("completed: %+v", completed)
	}

	byPriority, err := store.ListTasks(ctx, "u1", TaskFilterAll, TaskSortPriority, 0)
	if err != nil {
		t.Fatal(err)
	}
	if byPriority[0].Title != "Pay rent" {
		t.Fatalf("priority order: %q first", byPriority[0].Title)
	}

	byDue, err := store.ListTasks(ctx, "u1", TaskFilterAll, TaskSortDueDate, 0)
	if err != nil {
		t.Fatal(err)
	}
	// dated tasks first in due order, undated last
	if byDue[0].Title != "Buy milk" || byDue[2].Title != "Write report" {
		t.Fatalf("due order: %q, %q, %q", byDue[0].Title, byDue[1].Title, byDue[2].Title)
	}

	oldest, err := store.ListTasks(ctx, "u1", TaskFilterAll, TaskSortInsertion, 0)
	if err != nil {
		t.Fatal(err)
	}
	if oldest[0].Title != "Pay rent" {
		t.Fatalf("insertion order: %q first", oldest[0].Title)
	}
}

func TestCompletedAtTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := newTask("u1", "Ship release")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	done := true
	got, err := store.UpdateTask(ctx, task.ID, "u1", TaskUpdate{Completed: &done})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Completed || got.CompletedAt == nil {
		t.Fatalf("complete: %+v", got)
	}
	stamp := *got.CompletedAt

	// completing again does not move the stamp
	got, err = store.UpdateTask(ctx, task.ID, "u1", TaskUpdate{Completed: &done})
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(stamp) {
		t.Fatalf("stamp moved: %v -> %v", stamp, got.CompletedAt)
	}

	undone := false
	got, err = store.UpdateTask(ctx, task.ID, "u1", TaskUpdate{Completed: &undone})
	if err != nil {
		t.Fatal(err)
	}
	if got.Completed || got.CompletedAt != nil {
		t.Fatalf("reopen: %+v", got)
	}
}

func TestTaskDueDateClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(24 * time.Hour)
	task := newTask("u1", "Renew passport")
	task.DueDate = &due
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := store.UpdateTask(ctx, task.ID, "u1", TaskUpdate{ClearDue: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.DueDate != nil {
		t.Fatalf("due not cleared: %v", got.DueDate)
	}
}

func TestOwnerScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := newTask("u1", "Private")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetTask(ctx, task.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get: err=%v", err)
	}
	if err := store.DeleteTask(ctx, task.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner delete: err=%v", err)
	}
	if _, err := store.GetTask(ctx, task.ID, "u1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}
