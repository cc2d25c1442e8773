// Package httpapi is the JSON HTTP surface: conversations and chat turns,
// plus plain CRUD for calendar events and todo tasks. Callers identify
// themselves with the X-User-ID header.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/agent"
	"dayflow/internal/storage"
)

// ChatRunner runs one conversational turn. The HTTP layer only depends on
// this slice of the orchestrator.
type ChatRunner interface {
	HandleMessage(ctx context.Context, conversationID, ownerID, content string) (*agent.TurnResult, error)
}

type Server struct {
	store storage.Store
	chat  ChatRunner
}

func NewServer(store storage.Store, chat ChatRunner) http.Handler {
	s := &Server{store: store, chat: chat}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat/conversations", s.handleConversations)
	mux.HandleFunc("/api/chat/conversations/", s.handleConversationByID)
	mux.HandleFunc("/api/chat/messages", s.handleMessages)
	mux.HandleFunc("/api/calendar/events", s.handleEvents)
	mux.HandleFunc("/api/calendar/events/", s.handleEventByID)
	mux.HandleFunc("/api/todos", s.handleTodos)
	mux.HandleFunc("/api/todos/", s.handleTodoByID)

	return chainMiddlewares(mux, withRequestID, withLogging, withCORS)
}

// /api/chat/conversations
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		convs, err := s.store.ListConversations(r.Context(), ownerID)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "New Conversation"
		}
		now := time.Now()
		conv := &storage.Conversation{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateConversation(r.Context(), conv); err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"conversation": conv})
	default:
		methodNotAllowed(w)
	}
}

// /api/chat/conversations/{id}
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id := pathTail(r.URL.Path, "/api/chat/conversations/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := s.store.DeleteConversation(r.Context(), id, ownerID); err != nil {
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

// /api/chat/messages
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		conversationID := r.URL.Query().Get("conversationId")
		if conversationID == "" {
			badRequest(w, "conversationId is required")
			return
		}
		if _, err := s.store.GetConversation(r.Context(), conversationID, ownerID); err != nil {
			storeError(w, r, err)
			return
		}
		msgs, err := s.store.ListMessages(r.Context(), conversationID, 0)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	case http.MethodPost:
		var req struct {
			ConversationID string `json:"conversationId"`
			Content        string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if req.ConversationID == "" || strings.TrimSpace(req.Content) == "" {
			badRequest(w, "conversationId and content are required")
			return
		}

		result, err := s.chat.HandleMessage(r.Context(), req.ConversationID, ownerID, req.Content)
		if err != nil {
			var upstream *agent.UpstreamError
			switch {
			case errors.Is(err, storage.ErrNotFound):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
			case errors.As(err, &upstream):
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Upstream model request failed"})
			default:
				internalError(w, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		methodNotAllowed(w)
	}
}

// --- helpers ---

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if ownerID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return "", false
	}
	return ownerID, true
}

func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	internalError(w, err)
}
