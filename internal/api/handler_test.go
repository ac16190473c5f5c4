package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rybalko/askfirm/internal/pipeline"
	"github.com/rybalko/askfirm/internal/session"
	"github.com/rybalko/askfirm/internal/storage"
)

type fakeAnswerer struct {
	reply     pipeline.Reply
	lastQuery string
}

func (f *fakeAnswerer) Answer(_ context.Context, sess *session.Session, query string) pipeline.Reply {
	f.lastQuery = query
	sess.Append(session.RoleUser, query)
	sess.Append(session.RoleAssistant, f.reply.Text)
	return f.reply
}

type fakeLog struct {
	interactions []storage.Interaction
}

func (f *fakeLog) GetInteraction(id string) (storage.Interaction, error) {
	for _, ix := range f.interactions {
		if ix.ID == id {
			return ix, nil
		}
	}
	return storage.Interaction{}, storage.ErrNotFound
}

func (f *fakeLog) GetRecentInteractions(limit int) ([]storage.Interaction, error) {
	if limit > len(f.interactions) {
		limit = len(f.interactions)
	}
	return f.interactions[:limit], nil
}

func (f *fakeLog) GetSessionInteractions(sessionID string) ([]storage.Interaction, error) {
	var out []storage.Interaction
	for _, ix := range f.interactions {
		if ix.SessionID == sessionID {
			out = append(out, ix)
		}
	}
	return out, nil
}

func newTestHandler(answerer *fakeAnswerer, log InteractionReader) (http.Handler, *session.Store) {
	sessions := session.NewStore()
	return NewHandler(answerer, sessions, log), sessions
}

func TestChat(t *testing.T) {
	answerer := &fakeAnswerer{reply: pipeline.Reply{
		Text:    "Acme Corp offers cloud hosting.",
		Sources: []string{"http://acme.example/cloud"},
		Status:  storage.StatusAnswered,
	}}
	h, _ := newTestHandler(answerer, nil)

	body := `{"message": "What does Acme Corp offer?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("missing session_id")
	}
	if resp.Reply != answerer.reply.Text || resp.Status != storage.StatusAnswered {
		t.Errorf("response = %+v", resp)
	}
	if answerer.lastQuery != "What does Acme Corp offer?" {
		t.Errorf("query = %q", answerer.lastQuery)
	}
}

func TestChat_ReusesSession(t *testing.T) {
	answerer := &fakeAnswerer{reply: pipeline.Reply{Text: "ok", Status: storage.StatusAnswered}}
	h, sessions := newTestHandler(answerer, nil)
	sess := sessions.Create()

	body := `{"session_id": "` + sess.ID() + `", "message": "follow-up"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID != sess.ID() {
		t.Errorf("session_id = %q, want %q", resp.SessionID, sess.ID())
	}
	if sess.Len() != 2 {
		t.Errorf("turns = %d, want 2", sess.Len())
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	h, _ := newTestHandler(&fakeAnswerer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "   "}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(&fakeAnswerer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSession_Transcript(t *testing.T) {
	answerer := &fakeAnswerer{reply: pipeline.Reply{Text: "hi", Status: storage.StatusSmalltalk}}
	h, sessions := newTestHandler(answerer, nil)
	sess := sessions.Create()
	sess.Append(session.RoleUser, "hello")
	sess.Append(session.RoleAssistant, "hi")

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+sess.ID(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Role != session.RoleUser {
		t.Errorf("turns = %+v", resp.Turns)
	}
}

func TestSession_Unknown(t *testing.T) {
	h, _ := newTestHandler(&fakeAnswerer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestInteractions_List(t *testing.T) {
	log := &fakeLog{interactions: []storage.Interaction{
		{ID: "a", CreatedAt: time.Now(), SessionID: "s", UserQuery: "q1",
			Keywords: `["cloud"]`, Sources: `["http://acme.example/"]`, Status: storage.StatusAnswered},
		{ID: "b", CreatedAt: time.Now(), SessionID: "s", UserQuery: "q2",
			Keywords: "[]", Sources: "[]", Status: storage.StatusNoResults},
	}}
	h, _ := newTestHandler(&fakeAnswerer{}, log)

	req := httptest.NewRequest(http.MethodGet, "/interactions?limit=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var views []interactionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(views) != 1 || views[0].ID != "a" {
		t.Errorf("views = %+v", views)
	}
	if len(views[0].Keywords) != 1 || views[0].Keywords[0] != "cloud" {
		t.Errorf("keywords = %v", views[0].Keywords)
	}
}

func TestInteractions_BadLimit(t *testing.T) {
	h, _ := newTestHandler(&fakeAnswerer{}, &fakeLog{})

	req := httptest.NewRequest(http.MethodGet, "/interactions?limit=zero", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInteraction_NotFound(t *testing.T) {
	h, _ := newTestHandler(&fakeAnswerer{}, &fakeLog{})

	req := httptest.NewRequest(http.MethodGet, "/interactions/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
