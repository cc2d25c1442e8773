package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/storage"
)

type createEventRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	StartDateTime   string `json:"startDateTime"`
	EndDateTime     string `json:"endDateTime"`
	Location        string `json:"location"`
	Category        string `json:"category"`
	ReminderMinutes int    `json:"reminderMinutes"`
	Recurrence      string `json:"recurrence"`
}

type updateEventRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	StartDateTime   *string `json:"startDateTime"`
	EndDateTime     *string `json:"endDateTime"`
	Location        *string `json:"location"`
	Category        *string `json:"category"`
	ReminderMinutes *int    `json:"reminderMinutes"`
	Recurrence      *string `json:"recurrence"`
}

// /api/calendar/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		var start, end *time.Time
		if v := r.URL.Query().Get("startDate"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				badRequest(w, "invalid startDate")
				return
			}
			start = &t
		}
		if v := r.URL.Query().Get("endDate"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				badRequest(w, "invalid endDate")
				return
			}
			end = &t
		}

		events, err := s.store.ListEvents(r.Context(), ownerID, start, end, 0)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
	case http.MethodPost:
		var req createEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Title) == "" || req.StartDateTime == "" || req.EndDateTime == "" {
			badRequest(w, "Missing required fields: title, startDateTime, endDateTime")
			return
		}
		startTime, err1 := time.Parse(time.RFC3339, req.StartDateTime)
		endTime, err2 := time.Parse(time.RFC3339, req.EndDateTime)
		if err1 != nil || err2 != nil {
			badRequest(w, "Invalid date format")
			return
		}
		if !endTime.After(startTime) {
			badRequest(w, "End date must be after start date")
			return
		}

		reminder := req.ReminderMinutes
		if reminder <= 0 {
			reminder = 30
		}
		now := time.Now()
		ev := &storage.CalendarEvent{
			ID:              uuid.NewString(),
			OwnerID:         ownerID,
			Title:           strings.TrimSpace(req.Title),
			Description:     strings.TrimSpace(req.Description),
			StartTime:       startTime,
			EndTime:         endTime,
			Location:        strings.TrimSpace(req.Location),
			Category:        storage.NormalizeCategory(req.Category),
			ReminderMinutes: reminder,
			Recurrence:      storage.NormalizeRecurrence(req.Recurrence),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateEvent(r.Context(), ev); err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"event": ev, "message": "Event created successfully"})
	default:
		methodNotAllowed(w)
	}
}

// /api/calendar/events/{id}
func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id := pathTail(r.URL.Path, "/api/calendar/events/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ev, err := s.store.GetEvent(r.Context(), id, ownerID)
		if err != nil {
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": ev})
	case http.MethodPut:
		var req updateEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		upd := storage.EventUpdate{
			Title:           req.Title,
			Description:     req.Description,
			Location:        req.Location,
			Category:        req.Category,
			ReminderMinutes: req.ReminderMinutes,
			Recurrence:      req.Recurrence,
		}
		if req.StartDateTime != nil {
			t, err := time.Parse(time.RFC3339, *req.StartDateTime)
			if err != nil {
				badRequest(w, "Invalid date format")
				return
			}
			upd.StartTime = &t
		}
		if req.EndDateTime != nil {
			t, err := time.Parse(time.RFC3339, *req.EndDateTime)
			if err != nil {
				badRequest(w, "Invalid date format")
				return
			}
			upd.EndTime = &t
		}

		ev, err := s.store.UpdateEvent(r.Context(), id, ownerID, upd)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidTimeRange) {
				badRequest(w, "End date must be after start date")
				return
			}
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": ev, "message": "Event updated successfully"})
	case http.MethodDelete:
		ev, err := s.store.GetEvent(r.Context(), id, ownerID)
		if err != nil {
			storeError(w, r, err)
			return
		}
		if err := s.store.DeleteEvent(r.Context(), id, ownerID); err != nil {
			storeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Event deleted successfully", "event": ev})
	default:
		methodNotAllowed(w)
	}
}
