package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/storage"
)

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
	Category    string `json:"category"`
	CreatedBy   string `json:"createdBy"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Priority    *string `json:"priority"`
	// DueDate distinguishes absent (unchanged) from empty string (cleared).
	DueDate  *string `json:"dueDate"`
	Category *string `json:"category"`
}

// /api/todos
func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter := storage.TaskFilterAll
		switch r.URL.Query().Get("filter") {
		case "active":
			filter = storage.TaskFilterActive
		case "completed":
			filter = storage.TaskFilterCompleted
		}
		sort := storage.TaskSortCreated
		switch r.URL.Query().Get("sortBy") {
		case "dueDate":
			sort = storage.TaskSortDueDate
		case "priority":
			sort = storage.TaskSortPriority
		}

		tasks, err := s.store.ListTasks(r.Context(), ownerID, filter, sort, 0)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
	case http.MethodPost:
		var req createTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			badRequest(w, "Title is required")
			return
		}

		createdBy := storage.CreatedByUser
		if req.CreatedBy == storage.CreatedByAI {
			createdBy = storage.CreatedByAI
		}
		now := time.Now()
		task := &storage.TodoTask{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			Priority:    storage.NormalizePriority(req.Priority),
			Category:    strings.TrimSpace(req.Category),
			CreatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if req.DueDate != "" {
			due, err := time.Parse(time.RFC3339, req.DueDate)
			if err != nil {
				badRequest(w, "Invalid date format")
				return
			}
			task.DueDate = &due
		}
		if err := s.store.CreateTask(r.Context(), task); err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"task": task})
	default:
		methodNotAllowed(w)
	}
}

// /api/todos/{id}
func (s *Server) handleTodoByID(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id := pathTail(r.URL.Path, "/api/todos/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req updateTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
			badRequest(w, "Title cannot be empty")
			return
		}
		if req.Priority != nil {
			switch *req.Priority {
			case storage.PriorityLow, storage.PriorityMedium, storage.PriorityHigh:
			default:
				badRequest(w, "Invalid priority")
				return
			}
		}

		upd := storage.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			Completed:   req.Completed,
			Priority:    req.Priority,
			Category:    req.Category,
		}
		if req.DueDate != nil {
			if *req.DueDate == "" {
				upd.ClearDue = true
			} else {
				due, err := time.Parse(time.RFC3339, *req.DueDate)
				if err != nil {
					badRequest(w, "Invalid date format")
					return
				}
				upd.DueDate = &due
			}
		}

		task, err := s.store.UpdateTask(r.Context(), id, ownerID, upd)
		if err != nil {
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"task": task})
	case http.MethodDelete:
		task, err := s.store.GetTask(r.Context(), id, ownerID)
		if err != nil {
			storeError(w, r, err)
			return
		}
		if err := s.store.DeleteTask(r.Context(), id, ownerID); err != nil {
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Todo deleted successfully", "task": task})
	default:
		methodNotAllowed(w)
	}
}
