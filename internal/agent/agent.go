// Package agent runs the conversational loop: one user message in, at most
// two model rounds, serial tool execution in between, every step persisted
// to the transcript.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/chat"
	"dayflow/internal/observability"
	"dayflow/internal/provider"
	"dayflow/internal/storage"
	"dayflow/internal/tokens"
	"dayflow/internal/tools"
)

const (
	defaultHistoryLimit = 20
	defaultTokenBudget  = 6000
	titleMaxChars       = 50

	fallbackAfterTools = "Action completed successfully."
	fallbackNoContent  = "Sorry, I couldn't generate a response."
)

const systemPrompt = `You are a helpful AI assistant with full access to the user's calendar and task management systems.

**Available Calendar Functions:**
- Create a meeting, event, or appointment → Use create_calendar_event
- Check schedule or upcoming events → Use list_calendar_events
- Cancel, delete, or remove an event → Use delete_calendar_event
- Change, reschedule, or update an event → Use update_calendar_event

**Available Task Functions:**
- Add a task or todo → Use create_todo
- Check tasks or todos → Use list_todos
- Mark a task as done → Use complete_todo
- Remove a task → Use delete_todo

**Important Guidelines:**
1. Always use the functions to perform actions - never just provide instructions
2. When deleting or updating events, you MUST list events first to get the exact title
3. Be proactive and helpful - if the user says "cancel my meeting with John", list events first, find the matching one, then delete it
4. For updates, only modify the fields the user asks to change

**For calendar events, extract:**
- Title/subject of the meeting
- Date and time (in natural language)
- Duration if mentioned
- Location if mentioned
- Attendees if mentioned

**Workflow for delete/update operations:**
1. List events to find the exact title
2. Use the exact title from the list to delete or update
3. Confirm the action to the user

Always confirm actions in a friendly, professional way.`

// UpstreamError marks a model-backend failure. A turn that fails upstream
// produces no assistant message.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "upstream: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// Config tunes the orchestrator. Zero values select the defaults.
type Config struct {
	HistoryLimit int
	TokenBudget  int
	Temperature  *float32
	MaxTokens    int
}

// TurnResult is what one accepted user message produced.
type TurnResult struct {
	UserMessage      *storage.Message `json:"userMessage"`
	AssistantMessage *storage.Message `json:"assistantMessage"`
}

// Orchestrator drives conversations against a model backend and the tool
// registry.
type Orchestrator struct {
	provider provider.Provider
	convs    storage.ConversationStore
	msgs     storage.MessageStore
	registry *tools.Registry
	counter  *tokens.Counter
	cfg      Config
	now      func() time.Time
}

func New(p provider.Provider, convs storage.ConversationStore, msgs storage.MessageStore, reg *tools.Registry, cfg Config) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	return &Orchestrator{
		provider: p,
		convs:    convs,
		msgs:     msgs,
		registry: reg,
		counter:  tokens.Default(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleMessage accepts one user message, runs up to two model rounds with
// serial tool execution between them, and returns the persisted user and
// assistant messages. The conversation must belong to ownerID.
func (o *Orchestrator) HandleMessage(ctx context.Context, conversationID, ownerID, content string) (*TurnResult, error) {
	log := observability.LoggerFromContext(ctx)

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty message content")
	}
	if _, err := o.convs.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}

	now := o.now()
	userMsg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           storage.RoleUser,
		Content:        content,
		CreatedAt:      now,
	}
	if err := o.msgs.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := o.msgs.ListMessages(ctx, conversationID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	firstTurn := len(history) <= 1

	msgs := o.buildContext(history)

	round1, err := o.chat(ctx, msgs)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	var final string
	if len(round1.ToolCalls) > 0 {
		callsJSON, err := json.Marshal(round1.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("encode tool calls: %w", err)
		}
		assistantCall := &storage.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           storage.RoleAssistant,
			Content:        round1.Content,
			ToolCallsJSON:  string(callsJSON),
			CreatedAt:      o.now(),
		}
		if err := o.msgs.AppendMessage(ctx, assistantCall); err != nil {
			return nil, fmt.Errorf("persist assistant tool calls: %w", err)
		}
		msgs = append(msgs, chat.Message{
			Role:      chatRoleAssistant,
			Content:   round1.Content,
			ToolCalls: round1.ToolCalls,
		})

		for _, call := range round1.ToolCalls {
			log.Info("executing tool",
				"conversation_id", conversationID,
				"tool", call.Function.Name,
				"call_id", call.ID)
			result := o.registry.Execute(ctx, call.Function.Name, ownerID, json.RawMessage(call.Function.Arguments))

			toolMsg := &storage.Message{
				ID:             uuid.NewString(),
				ConversationID: conversationID,
				Role:           storage.RoleTool,
				Content:        result,
				ToolCallID:     call.ID,
				CreatedAt:      o.now(),
			}
			if err := o.msgs.AppendMessage(ctx, toolMsg); err != nil {
				return nil, fmt.Errorf("persist tool result: %w", err)
			}
			msgs = append(msgs, chat.Message{
				Role:       chatRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		round2, err := o.chat(ctx, msgs)
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		final = round2.Content
		if final == "" {
			final = fallbackAfterTools
		}
	} else {
		final = round1.Content
		if final == "" {
			final = fallbackNoContent
		}
	}

	assistantMsg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           storage.RoleAssistant,
		Content:        final,
		CreatedAt:      o.now(),
	}
	if err := o.msgs.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	title := ""
	if firstTurn {
		title = deriveTitle(content)
	}
	if err := o.convs.TouchConversation(ctx, conversationID, ownerID, title, o.now()); err != nil {
		log.Warn("touch conversation failed", "conversation_id", conversationID, "error", err)
	}

	return &TurnResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

const (
	chatRoleSystem    = "system"
	chatRoleUser      = "user"
	chatRoleAssistant = "assistant"
	chatRoleTool      = "tool"
)

// buildContext converts the stored transcript tail into a model context:
// system prompt first, then history oldest to newest, trimmed to the token
// budget from the front.
func (o *Orchestrator) buildContext(history []*storage.Message) []chat.Message {
	msgs := make([]chat.Message, 0, len(history)+1)
	msgs = append(msgs, chat.Message{Role: chatRoleSystem, Content: systemPrompt})
	for _, m := range history {
		cm := chat.Message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if m.Role == storage.RoleAssistant && m.ToolCallsJSON != "" && m.ToolCallsJSON != "[]" {
			var calls []chat.ToolCall
			if err := json.Unmarshal([]byte(m.ToolCallsJSON), &calls); err == nil {
				cm.ToolCalls = calls
			}
		}
		msgs = append(msgs, cm)
	}
	return o.trimToBudget(msgs)
}

// trimToBudget drops the oldest non-system messages until the context fits.
// A tool result is never left without the assistant message that requested
// it, so any tool messages stranded at the front go too.
func (o *Orchestrator) trimToBudget(msgs []chat.Message) []chat.Message {
	for len(msgs) > 2 && o.counter.Count(msgs) > o.cfg.TokenBudget {
		msgs = append(msgs[:1], msgs[2:]...)
		for len(msgs) > 1 && msgs[1].Role == chatRoleTool {
			msgs = append(msgs[:1], msgs[2:]...)
		}
	}
	return msgs
}

func (o *Orchestrator) chat(ctx context.Context, msgs []chat.Message) (provider.ChatResponse, error) {
	return o.provider.Chat(ctx, provider.ChatRequest{
		Model:       o.provider.CurrentModel(),
		Messages:    msgs,
		Tools:       o.registry.Definitions(),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
}

// deriveTitle builds a conversation title from the first user message.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxChars {
		return content
	}
	return string(runes[:titleMaxChars]) + "..."
}
