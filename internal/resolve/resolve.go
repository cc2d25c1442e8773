// Package resolve locates stored records from spoken titles. Matching is
// case-insensitive whole-title equality, never fuzzy; when several records
// share a title the first one in the store's natural return order wins and
// no disambiguation is attempted.
package resolve

import (
	"context"
	"strings"

	"dayflow/internal/storage"
)

// Resolver performs title-based entity lookup over the owner's records.
type Resolver struct {
	events storage.EventStore
	tasks  storage.TaskStore
}

func New(events storage.EventStore, tasks storage.TaskStore) *Resolver {
	return &Resolver{events: events, tasks: tasks}
}

// Event returns the owner's first calendar event whose title equals
// spokenTitle ignoring case, or nil when none matches.
func (r *Resolver) Event(ctx context.Context, ownerID, spokenTitle string) (*storage.CalendarEvent, error) {
	events, err := r.events.ListEventsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if strings.EqualFold(ev.Title, spokenTitle) {
			return ev, nil
		}
	}
	return nil, nil
}

// Task returns the owner's first task whose title equals spokenTitle
// ignoring case. With incompleteOnly the search is restricted to tasks
// not yet completed, so a title that exists only among completed tasks
// does not resolve.
func (r *Resolver) Task(ctx context.Context, ownerID, spokenTitle string, incompleteOnly bool) (*storage.TodoTask, error) {
	filter := storage.TaskFilterAll
	if incompleteOnly {
		filter = storage.TaskFilterActive
	}
	tasks, err := r.tasks.ListTasks(ctx, ownerID, filter, storage.TaskSortInsertion, 0)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if strings.EqualFold(task.Title, spokenTitle) {
			return task, nil
		}
	}
	return nil, nil
}
