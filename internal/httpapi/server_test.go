package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"dayflow/internal/agent"
	"dayflow/internal/storage"
)

type fakeChat struct {
	result *agent.TurnResult
	err    error
	calls  int
}

func (f *fakeChat) HandleMessage(_ context.Context, conversationID, ownerID, content string) (*agent.TurnResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, chat ChatRunner) (http.Handler, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(store, chat), store
}

func do(t *testing.T, h http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
}

func TestMissingUserHeader(t *testing.T) {
	h, _ := newTestServer(t, &fakeChat{})
	for _, path := range []string{"/api/chat/conversations", "/api/calendar/events", "/api/todos"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: code=%d", path, rec.Code)
		}
	}
}

func TestConversationEndpoints(t *testing.T) {
	h, _ := newTestServer(t, &fakeChat{})

	rec := do(t, h, http.MethodPost, "/api/chat/conversations", "u1", map[string]string{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Conversation storage.Conversation `json:"conversation"`
	}
	decode(t, rec, &created)
	if created.Conversation.Title != "New Conversation" {
		t.Fatalf("title=%q", created.Conversation.Title)
	}

	rec = do(t, h, http.MethodGet, "/api/chat/conversations", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list code=%d", rec.Code)
	}
	var listed struct {
		Conversations []storage.Conversation `json:"conversations"`
	}
	decode(t, rec, &listed)
	if len(listed.Conversations) != 1 {
		t.Fatalf("len=%d", len(listed.Conversations))
	}

	// another user sees nothing and cannot delete
	rec = do(t, h, http.MethodGet, "/api/chat/conversations", "u2", nil)
	decode(t, rec, &listed)
	if len(listed.Conversations) != 0 {
		t.Fatalf("cross-owner len=%d", len(listed.Conversations))
	}
	rec = do(t, h, http.MethodDelete, "/api/chat/conversations/"+created.Conversation.ID, "u2", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-owner delete code=%d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/api/chat/conversations/"+created.Conversation.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete code=%d", rec.Code)
	}
}

func TestPostMessageRunsAgent(t *testing.T) {
	turn := &agent.TurnResult{
		UserMessage:      &storage.Message{ID: "m1", Role: "user", Content: "hi"},
		AssistantMessage: &storage.Message{ID: "m2", Role: "assistant", Content: "hello"},
	}
	fc := &fakeChat{result: turn}
	h, store := newTestServer(t, fc)

	now := time.Now().UTC()
	conv := &storage.Conversation{ID: uuid.NewString(), OwnerID: "u1", Title: "t", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodPost, "/api/chat/messages", "u1", map[string]string{
		"conversationId": conv.ID,
		"content":        "hi",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	if fc.calls != 1 {
		t.Fatalf("agent calls=%d", fc.calls)
	}
	var got agent.TurnResult
	decode(t, rec, &got)
	if got.AssistantMessage == nil || got.AssistantMessage.Content != "hello" {
		t.Fatalf("result=%+v", got)
	}

	// missing fields never reach the agent
	rec = do(t, h, http.MethodPost, "/api/chat/messages", "u1", map[string]string{"content": "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rec.Code)
	}
	if fc.calls != 1 {
		t.Fatalf("agent calls=%d", fc.calls)
	}
}

func TestPostMessageErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{&agent.UpstreamError{Err: errors.New("bad gateway")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h, _ := newTestServer(t, &fakeChat{err: tc.err})
		rec := do(t, h, http.MethodPost, "/api/chat/messages", "u1", map[string]string{
			"conversationId": "c1",
			"content":        "hi",
		})
		if rec.Code != tc.code {
			t.Fatalf("err=%v code=%d want %d", tc.err, rec.Code, tc.code)
		}
	}
}

func TestGetMessagesChecksOwnership(t *testing.T) {
	h, store := newTestServer(t, &fakeChat{})

	now := time.Now().UTC()
	conv := &storage.Conversation{ID: uuid.NewString(), OwnerID: "u1", Title: "t", CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatal(err)
	}
	msg := &storage.Message{ID: uuid.NewString(), ConversationID: conv.ID, Role: "user", Content: "hi", CreatedAt: now}
	if err := store.AppendMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/api/chat/messages?conversationId="+conv.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	var got struct {
		Messages []storage.Message `json:"messages"`
	}
	decode(t, rec, &got)
	if len(got.Messages) != 1 {
		t.Fatalf("len=%d", len(got.Messages))
	}

	rec = do(t, h, http.MethodGet, "/api/chat/messages?conversationId="+conv.ID, "u2", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-owner code=%d", rec.Code)
	}
}

func TestEventCRUD(t *testing.T) {
	h, _ := newTestServer(t, &fakeChat{})

	start := time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)
	rec := do(t, h, http.MethodPost, "/api/calendar/events", "u1", map[string]any{
		"title":         "Dentist",
		"startDateTime": start.Format(time.RFC3339),
		"endDateTime":   start.Add(time.Hour).Format(time.RFC3339),
		"location":      "Clinic",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Event storage.CalendarEvent `json:"event"`
	}
	decode(t, rec, &created)
	if created.Event.Category != storage.CategoryOther || created.Event.ReminderMinutes != 30 {
		t.Fatalf("defaults: %+v", created.Event)
	}

	// inverted range is rejected
	rec = do(t, h, http.MethodPost, "/api/calendar/events", "u1", map[string]any{
		"title":         "Broken",
		"startDateTime": start.Format(time.RFC3339),
		"endDateTime":   start.Format(time.RFC3339),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted code=%d", rec.Code)
	}

	// window filter
	rec = do(t, h, http.MethodGet,
		"/api/calendar/events?startDate="+start.Add(-time.Hour).Format(time.RFC3339)+
			"&endDate="+start.Add(time.Hour).Format(time.RFC3339), "u1", nil)
	var listed struct {
		Events []storage.CalendarEvent `json:"events"`
		Count  int                     `json:"count"`
	}
	decode(t, rec, &listed)
	if listed.Count != 1 {
		t.Fatalf("count=%d", listed.Count)
	}

	// partial update
	rec = do(t, h, http.MethodPut, "/api/calendar/events/"+created.Event.ID, "u1", map[string]any{
		"title": "Dentist Appointment",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update code=%d body=%s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Event storage.CalendarEvent `json:"event"`
	}
	decode(t, rec, &updated)
	if updated.Event.Title != "Dentist Appointment" || updated.Event.Location != "Clinic" {
		t.Fatalf("update: %+v", updated.Event)
	}

	rec = do(t, h, http.MethodDelete, "/api/calendar/events/"+created.Event.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete code=%d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/api/calendar/events/"+created.Event.ID, "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete code=%d", rec.Code)
	}
}

func TestTodoCRUD(t *testing.T) {
	h, _ := newTestServer(t, &fakeChat{})

	rec := do(t, h, http.MethodPost, "/api/todos", "u1", map[string]any{
		"title":    "Buy milk",
		"priority": "bogus",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Task storage.TodoTask `json:"task"`
	}
	decode(t, rec, &created)
	if created.Task.Priority != storage.PriorityMedium {
		t.Fatalf("priority=%q", created.Task.Priority)
	}
	if created.Task.CreatedBy != storage.CreatedByUser {
		t.Fatalf("createdBy=%q", created.Task.CreatedBy)
	}

	// empty title is rejected
	rec = do(t, h, http.MethodPost, "/api/todos", "u1", map[string]any{"title": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty title code=%d", rec.Code)
	}

	// complete it via PATCH
	rec = do(t, h, http.MethodPatch, "/api/todos/"+created.Task.ID, "u1", map[string]any{
		"completed": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch code=%d body=%s", rec.Code, rec.Body.String())
	}
	var patched struct {
		Task storage.TodoTask `json:"task"`
	}
	decode(t, rec, &patched)
	if !patched.Task.Completed || patched.Task.CompletedAt == nil {
		t.Fatalf("patched: %+v", patched.Task)
	}

	// invalid priority is rejected
	rec = do(t, h, http.MethodPatch, "/api/todos/"+created.Task.ID, "u1", map[string]any{
		"priority": "urgent",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("priority code=%d", rec.Code)
	}

	// filter query
	rec = do(t, h, http.MethodGet, "/api/todos?filter=completed", "u1", nil)
	var listed struct {
		Tasks []storage.TodoTask `json:"tasks"`
	}
	decode(t, rec, &listed)
	if len(listed.Tasks) != 1 {
		t.Fatalf("completed len=%d", len(listed.Tasks))
	}
	rec = do(t, h, http.MethodGet, "/api/todos?filter=active", "u1", nil)
	decode(t, rec, &listed)
	if len(listed.Tasks) != 0 {
		t.Fatalf("active len=%d", len(listed.Tasks))
	}

	rec = do(t, h, http.MethodDelete, "/api/todos/"+created.Task.ID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete code=%d", rec.Code)
	}
}
