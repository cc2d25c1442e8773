package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dayflow/internal/chat"
	"dayflow/internal/storage"
	"dayflow/internal/temporal"
)

// CreateTodoTool adds a task to the user's todo list.
type CreateTodoTool struct {
	deps Deps
}

func (t *CreateTodoTool) Name() string { return "create_todo" }

func (t *CreateTodoTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Create a todo/task item for the user. Use this when the user asks to add a task, " +
				"create a reminder, or add something to their todo list.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The task title",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Additional details about the task (optional)",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high"},
						"description": "Priority level of the task (default: medium)",
					},
					"dueDate": map[string]any{
						"type":        "string",
						"description": `Due date in natural language (e.g., "tomorrow", "Friday", "end of week") (optional)`,
					},
					"category": map[string]any{
						"type":        "string",
						"description": "Category like work, personal, shopping (optional)",
					},
				},
				"required": []string{"title"},
			},
		},
	}
}

func (t *CreateTodoTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		DueDate     string `json:"dueDate"`
		Category    string `json:"category"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.Title) == "" {
		return "I need a title to create a task.", nil
	}

	now := t.deps.now()
	task := &storage.TodoTask{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Priority:    storage.NormalizePriority(in.Priority),
		Category:    strings.TrimSpace(in.Category),
		CreatedBy:   storage.CreatedByAI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Unparsable due dates are dropped silently; the task is still created.
	if in.DueDate != "" {
		if parsed, ok := temporal.Parse(in.DueDate, now); ok {
			due := parsed.Start
			task.DueDate = &due
		}
	}
	if err := t.deps.Tasks.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	var b strings.Builder
	b.WriteString("### ✅ Task Created Successfully\n\n")
	fmt.Fprintf(&b, "%s **%s**\n\n", priorityEmoji(task.Priority), task.Title)
	fmt.Fprintf(&b, "⚡ **Priority:** %s\n\n", priorityLabel(task.Priority))
	if task.DueDate != nil {
		fmt.Fprintf(&b, "📅 **Due:** %s\n\n", formatDate(*task.DueDate, now.Location()))
	}
	if task.Category != "" {
		fmt.Fprintf(&b, "🏷️ **Category:** %s\n\n", task.Category)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "📝 **Details:**\n> %s\n\n", task.Description)
	}
	b.WriteString("---\n\n*The task has been added to your todo list.*")
	return b.String(), nil
}

// ListTodosTool lists the user's tasks under a completion filter.
type ListTodosTool struct {
	deps Deps
}

func (t *ListTodosTool) Name() string { return "list_todos" }

func (t *ListTodosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "List the user's todo tasks. Use this when the user asks about their tasks, " +
				"todos, or what they need to do.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filter": map[string]any{
						"type":        "string",
						"enum":        []string{"all", "active", "completed"},
						"description": "Filter tasks by status (default: active)",
					},
				},
				"required": []string{},
			},
		},
	}
}

func (t *ListTodosTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		Filter string `json:"filter"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	filter := storage.TaskFilterActive
	switch strings.ToLower(strings.TrimSpace(in.Filter)) {
	case "all":
		filter = storage.TaskFilterAll
	case "completed":
		filter = storage.TaskFilterCompleted
	}

	tasks, err := t.deps.Tasks.ListTasks(ctx, ownerID, filter, storage.TaskSortCreated, 20)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return fmt.Sprintf("### 📋 No Tasks Found\n\nYou have no %s tasks. Enjoy your free time! 🎉", string(filter)), nil
	}

	loc := t.deps.now().Location()
	var b strings.Builder
	fmt.Fprintf(&b, "### 📋 Your Tasks (%s)\n\n", string(filter))
	fmt.Fprintf(&b, "You have **%d** task%s:\n\n", len(tasks), plural(len(tasks)))
	for i, task := range tasks {
		check := "⬜"
		if task.Completed {
			check = "✅"
		}
		fmt.Fprintf(&b, "%d. %s %s **%s**", i+1, check, priorityEmoji(task.Priority), task.Title)
		if task.DueDate != nil {
			fmt.Fprintf(&b, " — due %s", formatDate(*task.DueDate, loc))
		}
		b.WriteString("\n")
		if task.Description != "" {
			fmt.Fprintf(&b, "   %s\n", task.Description)
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// CompleteTodoTool marks an incomplete task as done. Already-completed
// tasks are not candidates for resolution.
type CompleteTodoTool struct {
	deps Deps
}

func (t *CompleteTodoTool) Name() string { return "complete_todo" }

func (t *CompleteTodoTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Mark a todo task as completed. Use this when the user says they finished or " +
				"completed a task.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskTitle": map[string]any{
						"type":        "string",
						"description": "The title of the task to mark as complete",
					},
				},
				"required": []string{"taskTitle"},
			},
		},
	}
}

func (t *CompleteTodoTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		TaskTitle string `json:"taskTitle"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.TaskTitle) == "" {
		return "I need the title of the task to complete.", nil
	}

	task, err := t.deps.Resolver.Task(ctx, ownerID, in.TaskTitle, true)
	if err != nil {
		return "", fmt.Errorf("resolve task: %w", err)
	}
	if task == nil {
		return fmt.Sprintf("### ❌ Task Not Found\n\nI couldn't find an active task with the title %q. Please check your task list and try again.", in.TaskTitle), nil
	}

	completed := true
	if _, err := t.deps.Tasks.UpdateTask(ctx, task.ID, ownerID, storage.TaskUpdate{Completed: &completed}); err != nil {
		return "", fmt.Errorf("complete task: %w", err)
	}
	return fmt.Sprintf("### ✅ Task Completed\n\nGreat job! The task **%q** has been marked as complete. 🎉", task.Title), nil
}

// DeleteTodoTool removes a task located by spoken title.
type DeleteTodoTool struct {
	deps Deps
}

func (t *DeleteTodoTool) Name() string { return "delete_todo" }

func (t *DeleteTodoTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Delete a todo task. Use this when the user asks to remove or delete a task " +
				"from their list.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskTitle": map[string]any{
						"type":        "string",
						"description": "The title of the task to delete",
					},
				},
				"required": []string{"taskTitle"},
			},
		},
	}
}

func (t *DeleteTodoTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		TaskTitle string `json:"taskTitle"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.TaskTitle) == "" {
		return "I need the title of the task to delete.", nil
	}

	task, err := t.deps.Resolver.Task(ctx, ownerID, in.TaskTitle, false)
	if err != nil {
		return "", fmt.Errorf("resolve task: %w", err)
	}
	if task == nil {
		return taskNotFound(in.TaskTitle), nil
	}

	if err := t.deps.Tasks.DeleteTask(ctx, task.ID, ownerID); err != nil {
		return "", fmt.Errorf("delete task: %w", err)
	}
	return fmt.Sprintf("### ✅ Task Deleted\n\nThe task **%q** has been removed from your todo list.", task.Title), nil
}

func taskNotFound(title string) string {
	return fmt.Sprintf("### ❌ Task Not Found\n\nI couldn't find a task with the title %q. Please check your todo list and try again with the exact task name.", title)
}
