// Package api exposes the question-answering pipeline over a local REST API
// and an MCP server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rybalko/askfirm/internal/pipeline"
	"github.com/rybalko/askfirm/internal/session"
	"github.com/rybalko/askfirm/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Answerer runs one conversational turn.
type Answerer interface {
	Answer(ctx context.Context, sess *session.Session, query string) pipeline.Reply
}

// InteractionReader reads the persisted interaction log.
type InteractionReader interface {
	GetInteraction(id string) (storage.Interaction, error)
	GetRecentInteractions(limit int) ([]storage.Interaction, error)
	GetSessionInteractions(sessionID string) ([]storage.Interaction, error)
}

// NewHandler returns the REST API handler. log may be nil when the
// interaction log is disabled; the history endpoints then return 404.
func NewHandler(answerer Answerer, sessions *session.Store, log InteractionReader) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/chat", handleChat(answerer, sessions))
	r.Get("/sessions/{id}", handleSession(sessions))
	if log != nil {
		r.Get("/interactions", handleInteractions(log))
		r.Get("/interactions/{id}", handleInteraction(log))
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	Sources   []string `json:"sources,omitempty"`
	Status    string   `json:"status"`
}

func handleChat(answerer Answerer, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required and must not be empty")
			return
		}

		sess := sessions.GetOrCreate(req.SessionID)
		reply := answerer.Answer(r.Context(), sess, req.Message)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			SessionID: sess.ID(),
			Reply:     reply.Text,
			Sources:   reply.Sources,
			Status:    reply.Status,
		})
	}
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

func handleSession(sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := sessions.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "unknown session %s", id)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessionResponse{
			SessionID: sess.ID(),
			Turns:     sess.Turns(),
		})
	}
}

type interactionView struct {
	ID          string   `json:"id"`
	CreatedAt   string   `json:"created_at"`
	SessionID   string   `json:"session_id"`
	UserQuery   string   `json:"user_query"`
	Company     string   `json:"company,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Answer      string   `json:"answer"`
	Status      string   `json:"status"`
}

func viewInteraction(i storage.Interaction) interactionView {
	return interactionView{
		ID:          i.ID,
		CreatedAt:   i.CreatedAt.Format(time.RFC3339),
		SessionID:   i.SessionID,
		UserQuery:   i.UserQuery,
		Company:     i.Company,
		Keywords:    decodeList(i.Keywords),
		SearchQuery: i.SearchQuery,
		Sources:     decodeList(i.Sources),
		Answer:      i.Answer,
		Status:      i.Status,
	}
}

func decodeList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func handleInteractions(log InteractionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}

		var (
			interactions []storage.Interaction
			err          error
		)
		if sid := r.URL.Query().Get("session_id"); sid != "" {
			interactions, err = log.GetSessionInteractions(sid)
		} else {
			interactions, err = log.GetRecentInteractions(limit)
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading interactions: %v", err)
			return
		}

		views := make([]interactionView, len(interactions))
		for i, ix := range interactions {
			views[i] = viewInteraction(ix)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleInteraction(log InteractionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ix, err := log.GetInteraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "unknown interaction %s", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewInteraction(ix))
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
