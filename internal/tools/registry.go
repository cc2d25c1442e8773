package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"dayflow/internal/chat"
	"dayflow/internal/observability"
)

// Registry maps tool names to handlers and dispatches model tool calls.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry and verifies that the handler set and
// the catalog name set are the same, so the two cannot drift apart
// silently.
func NewRegistry(ts ...Tool) (*Registry, error) {
	m := make(map[string]Tool, len(ts))
	for _, t := range ts {
		name := t.Name()
		if _, dup := m[name]; dup {
			return nil, fmt.Errorf("duplicate tool handler: %s", name)
		}
		m[name] = t
	}
	for _, name := range CatalogNames {
		if _, ok := m[name]; !ok {
			return nil, fmt.Errorf("catalog tool %s has no handler", name)
		}
	}
	if len(m) != len(CatalogNames) {
		return nil, fmt.Errorf("handler set (%d) and catalog (%d) differ", len(m), len(CatalogNames))
	}
	return &Registry{tools: m}, nil
}

// Definitions returns every tool definition, sorted by name.
func (r *Registry) Definitions() []chat.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]chat.ToolDef, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute runs one tool call and always returns result text. Unknown
// names, handler errors, and handler panics all surface as text; the
// conversation keeps going no matter how a single tool misbehaves.
func (r *Registry) Execute(ctx context.Context, name, ownerID string, args json.RawMessage) (result string) {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	log := observability.LoggerFromContext(ctx).With("tool", name)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("tool handler panicked", "panic", rec)
			result = "Error: the operation failed unexpectedly. Please try again."
		}
	}()

	result, err := t.Execute(ctx, ownerID, args)
	if err != nil {
		log.Error("tool execution failed", "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}
