package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/chat"
	"dayflow/internal/storage"
	"dayflow/internal/temporal"
)

// CreateEventTool schedules a new calendar event from a natural-language
// date/time phrase.
type CreateEventTool struct {
	deps Deps
}

func (t *CreateEventTool) Name() string { return "create_calendar_event" }

func (t *CreateEventTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Create a calendar event for the user. Use this when the user asks to schedule " +
				"a meeting, create an appointment, or add an event to their calendar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The title/name of the event or meeting",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Additional details about the event (optional)",
					},
					"dateTime": map[string]any{
						"type": "string",
						"description": `The date and time for the event in natural language (e.g., "tomorrow at 3 PM", "next Monday at 10 AM", "January 15 at 2:30 PM")`,
					},
					"duration": map[string]any{
						"type":        "number",
						"description": "Duration of the event in minutes (default: 60)",
					},
					"location": map[string]any{
						"type":        "string",
						"description": "Location of the event (optional)",
					},
					"attendees": map[string]any{
						"type":        "string",
						"description": "Comma-separated list of attendee names or emails (optional)",
					},
				},
				"required": []string{"title", "dateTime"},
			},
		},
	}
}

func (t *CreateEventTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		DateTime    string  `json:"dateTime"`
		Duration    float64 `json:"duration"`
		Location    string  `json:"location"`
		Attendees   string  `json:"attendees"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.DateTime) == "" {
		return "I need both a title and a date/time to create an event.", nil
	}

	now := t.deps.now()
	parsed, ok := temporal.Parse(in.DateTime, now)
	if !ok {
		return fmt.Sprintf("I couldn't understand the date/time %q. Please try again with a clearer format like \"tomorrow at 3 PM\" or \"January 15 at 2:30 PM\".", in.DateTime), nil
	}

	start := parsed.Start
	var end time.Time
	if parsed.End != nil {
		end = *parsed.End
	} else {
		minutes := int(in.Duration)
		if minutes <= 0 {
			minutes = defaultEventMinutes
		}
		end = start.Add(time.Duration(minutes) * time.Minute)
	}

	ev := &storage.CalendarEvent{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		StartTime:       start,
		EndTime:         end,
		Location:        strings.TrimSpace(in.Location),
		Category:        storage.CategoryMeeting,
		ReminderMinutes: 30,
		Recurrence:      storage.RecurrenceNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.deps.Events.CreateEvent(ctx, ev); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	var b strings.Builder
	b.WriteString("### ✅ Event Created Successfully\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", ev.Title)
	loc := now.Location()
	fmt.Fprintf(&b, "📅 **Date:** %s\n\n", formatDate(start, loc))
	fmt.Fprintf(&b, "🕐 **Time:** %s - %s\n\n", formatClock(start, loc), formatClock(end, loc))
	if ev.Location != "" {
		fmt.Fprintf(&b, "📍 **Location:** %s\n\n", ev.Location)
	}
	if in.Attendees != "" {
		fmt.Fprintf(&b, "👥 **Attendees:** %s\n\n", in.Attendees)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "📝 **Details:**\n> %s\n\n", ev.Description)
	}
	b.WriteString("---\n\n*A reminder will be sent 30 minutes before the meeting.*")
	return b.String(), nil
}

// ListEventsTool lists the agenda for one natural-language day.
type ListEventsTool struct {
	deps Deps
}

func (t *ListEventsTool) Name() string { return "list_calendar_events" }

func (t *ListEventsTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "List upcoming calendar events for the user. Use this when the user asks about " +
				"their schedule, upcoming meetings, or what's on their calendar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": `The date to check (e.g., "today", "tomorrow", "next week"). Defaults to today.`,
					},
					"limit": map[string]any{
						"type":        "number",
						"description": "Maximum number of events to return (default: 10)",
					},
				},
				"required": []string{},
			},
		},
	}
}

func (t *ListEventsTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		Date  string  `json:"date"`
		Limit float64 `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.Date) == "" {
		in.Date = "today"
	}
	limit := int(in.Limit)
	if limit <= 0 {
		limit = 10
	}

	now := t.deps.now()
	day := now
	if parsed, ok := temporal.Parse(in.Date, now); ok {
		day = parsed.Start
	}
	start, end := temporal.DayWindow(day)

	events, err := t.deps.Events.ListEvents(ctx, ownerID, &start, &end, limit)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Sprintf("### 📅 No Events Scheduled\n\nYou have no events scheduled for %s.", in.Date), nil
	}

	loc := now.Location()
	var b strings.Builder
	fmt.Fprintf(&b, "### 📅 Your Schedule for %s\n\n", formatDate(day, loc))
	fmt.Fprintf(&b, "You have **%d** event%s scheduled:\n\n---\n\n", len(events), plural(len(events)))
	for i, ev := range events {
		fmt.Fprintf(&b, "#### %d. %s\n\n", i+1, ev.Title)
		fmt.Fprintf(&b, "🕐 **Time:** %s - %s\n\n", formatClock(ev.StartTime, loc), formatClock(ev.EndTime, loc))
		if ev.Location != "" {
			fmt.Fprintf(&b, "📍 **Location:** %s\n\n", ev.Location)
		}
		if ev.Description != "" {
			fmt.Fprintf(&b, "📝 **Details:** %s\n\n", ev.Description)
		}
		b.WriteString("---\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n\n"), nil
}

// DeleteEventTool removes an event located by spoken title.
type DeleteEventTool struct {
	deps Deps
}

func (t *DeleteEventTool) Name() string { return "delete_calendar_event" }

func (t *DeleteEventTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name: t.Name(),
			Description: "Delete a calendar event. Use this when the user asks to cancel, delete, or " +
				"remove an event from their calendar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"eventTitle": map[string]any{
						"type":        "string",
						"description": "The title of the event to delete (you must list events first to get the exact title)",
					},
				},
				"required": []string{"eventTitle"},
			},
		},
	}
}

func (t *DeleteEventTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		EventTitle string `json:"eventTitle"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.EventTitle) == "" {
		return "I need the title of the event to delete.", nil
	}

	ev, err := t.deps.Resolver.Event(ctx, ownerID, in.EventTitle)
	if err != nil {
		return "", fmt.Errorf("resolve event: %w", err)
	}
	if ev == nil {
		return eventNotFound(in.EventTitle), nil
	}

	if err := t.deps.Events.DeleteEvent(ctx, ev.ID, ownerID); err != nil {
		return "", fmt.Errorf("delete event: %w", err)
	}
	loc := t.deps.now().Location()
	return fmt.Sprintf("### ✅ Event Deleted Successfully\n\nThe event **%q** scheduled for %s at %s has been removed from your calendar.",
		ev.Title, formatDate(ev.StartTime, loc), formatClock(ev.StartTime, loc)), nil
}

// UpdateEventTool applies a selective field merge to an event located by
// spoken title. When a new time is given the end is recomputed from the
// existing or newly given duration.
type UpdateEventTool struct {
	deps Deps
}

func (t *UpdateEventTool) Name() string { return "update_calendar_event" }

func (t *UpdateEventTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Update/edit a calendar event. Use this when the user asks to change, reschedule, or modify an event.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"eventTitle": map[string]any{
						"type":        "string",
						"description": "The current title of the event to update",
					},
					"newTitle": map[string]any{
						"type":        "string",
						"description": "New title for the event (optional)",
					},
					"newDateTime": map[string]any{
						"type":        "string",
						"description": "New date/time in natural language (optional)",
					},
					"newDuration": map[string]any{
						"type":        "number",
						"description": "New duration in minutes (optional)",
					},
					"newLocation": map[string]any{
						"type":        "string",
						"description": "New location (optional)",
					},
					"newDescription": map[string]any{
						"type":        "string",
						"description": "New description (optional)",
					},
				},
				"required": []string{"eventTitle"},
			},
		},
	}
}

func (t *UpdateEventTool) Execute(ctx context.Context, ownerID string, args json.RawMessage) (string, error) {
	var in struct {
		EventTitle     string  `json:"eventTitle"`
		NewTitle       string  `json:"newTitle"`
		NewDateTime    string  `json:"newDateTime"`
		NewDuration    float64 `json:"newDuration"`
		NewLocation    *string `json:"newLocation"`
		NewDescription *string `json:"newDescription"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return malformedArgs(t.Name()), nil
	}
	if strings.TrimSpace(in.EventTitle) == "" {
		return "I need the title of the event to update.", nil
	}

	ev, err := t.deps.Resolver.Event(ctx, ownerID, in.EventTitle)
	if err != nil {
		return "", fmt.Errorf("resolve event: %w", err)
	}
	if ev == nil {
		return eventNotFound(in.EventTitle), nil
	}

	var upd storage.EventUpdate
	if in.NewTitle != "" {
		upd.Title = &in.NewTitle
	}
	if in.NewDateTime != "" {
		parsed, ok := temporal.Parse(in.NewDateTime, t.deps.now())
		if !ok {
			return fmt.Sprintf("### ❌ Invalid Date\n\nI couldn't understand the date/time %q. Please try again with a clearer format.", in.NewDateTime), nil
		}
		start := parsed.Start
		upd.StartTime = &start

		duration := ev.EndTime.Sub(ev.StartTime)
		if in.NewDuration > 0 {
			duration = time.Duration(in.NewDuration) * time.Minute
		}
		end := start.Add(duration)
		upd.EndTime = &end
	} else if in.NewDuration > 0 {
		end := ev.StartTime.Add(time.Duration(in.NewDuration) * time.Minute)
		upd.EndTime = &end
	}
	if in.NewLocation != nil {
		upd.Location = in.NewLocation
	}
	if in.NewDescription != nil {
		upd.Description = in.NewDescription
	}

	updated, err := t.deps.Events.UpdateEvent(ctx, ev.ID, ownerID, upd)
	if err != nil {
		return "", fmt.Errorf("update event: %w", err)
	}

	loc := t.deps.now().Location()
	var b strings.Builder
	b.WriteString("### ✅ Event Updated Successfully\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", updated.Title)
	fmt.Fprintf(&b, "📅 **Date:** %s\n\n", formatDate(updated.StartTime, loc))
	fmt.Fprintf(&b, "🕐 **Time:** %s - %s\n\n", formatClock(updated.StartTime, loc), formatClock(updated.EndTime, loc))
	if updated.Location != "" {
		fmt.Fprintf(&b, "📍 **Location:** %s\n\n", updated.Location)
	}
	if updated.Description != "" {
		fmt.Fprintf(&b, "📝 **Details:**\n> %s\n\n", updated.Description)
	}
	b.WriteString("---\n\n*Event has been updated in your calendar.*")
	return b.String(), nil
}

func eventNotFound(title string) string {
	return fmt.Sprintf("### ❌ Event Not Found\n\nI couldn't find an event with the title %q. Please check your calendar and try again with the exact event name.", title)
}
