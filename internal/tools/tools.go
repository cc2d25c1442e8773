// Package tools holds the closed catalog of operations the model may
// invoke and the dispatcher that executes them. Handlers never let
// validation, parse, or not-found failures escape as errors: those come
// back as human-readable result text so the model can react to them
// conversationally. Only store/infrastructure failures return an error,
// and the registry converts even those into generic result text at its
// boundary.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"dayflow/internal/chat"
	"dayflow/internal/resolve"
	"dayflow/internal/storage"
)

// Default duration for created events when the phrase implies no end.
const defaultEventMinutes = 60

// Tool is one catalog operation with a typed handler.
type Tool interface {
	Name() string
	Definition() chat.ToolDef
	Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error)
}

// Deps carries the collaborators every handler draws on. Now supplies
// the reference instant for temporal resolution; tests pin it.
type Deps struct {
	Events   storage.EventStore
	Tasks    storage.TaskStore
	Resolver *resolve.Resolver
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// All returns the full handler set in catalog order.
func All(deps Deps) []Tool {
	return []Tool{
		&CreateEventTool{deps},
		&ListEventsTool{deps},
		&DeleteEventTool{deps},
		&UpdateEventTool{deps},
		&CreateTodoTool{deps},
		&ListTodosTool{deps},
		&CompleteTodoTool{deps},
		&DeleteTodoTool{deps},
	}
}

// CatalogNames is the closed set of tool names the dispatcher must
// implement; the registry verifies the bijection at startup.
var CatalogNames = []string{
	"create_calendar_event",
	"list_calendar_events",
	"delete_calendar_event",
	"update_calendar_event",
	"create_todo",
	"list_todos",
	"complete_todo",
	"delete_todo",
}
