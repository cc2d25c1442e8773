package storage

import "time"

// Message roles as they appear in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task provenance: who created the record.
const (
	CreatedByUser = "user"
	CreatedByAI   = "ai"
)

// Event categories.
const (
	CategoryWork        = "work"
	CategoryPersonal    = "personal"
	CategoryAppointment = "appointment"
	CategoryMeeting     = "meeting"
	CategoryOther       = "other"
)

// Event recurrence values.
const (
	RecurrenceNone    = "none"
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
	RecurrenceYearly  = "yearly"
)

// Conversation is one chat thread owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one transcript entry. Messages are append-only; creation
// order is the canonical transcript order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ToolCallID     string    `json:"tool_call_id,omitempty"`
	ToolCallsJSON  string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// CalendarEvent is an owner-scoped calendar entry. EndTime > StartTime
// always holds for stored events.
type CalendarEvent struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location,omitempty"`
	Category        string    `json:"category"`
	ReminderMinutes int       `json:"reminder_minutes"`
	Recurrence      string    `json:"recurrence"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TodoTask is an owner-scoped todo entry. CompletedAt is set exactly when
// Completed transitions false to true and cleared on the reverse.
type TodoTask struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Category    string     `json:"category,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NormalizePriority maps arbitrary input to a valid priority, defaulting
// to medium.
func NormalizePriority(s string) string {
	switch s {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return s
	default:
		return PriorityMedium
	}
}

// NormalizeCategory maps arbitrary input to a valid event category,
// defaulting to other.
func NormalizeCategory(s string) string {
	switch s {
	case CategoryWork, CategoryPersonal, CategoryAppointment, CategoryMeeting, CategoryOther:
		return s
	default:
		return CategoryOther
	}
}

// NormalizeRecurrence maps arbitrary input to a valid recurrence,
// defaulting to none.
func NormalizeRecurrence(s string) string {
	switch s {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return s
	default:
		return RecurrenceNone
	}
}
