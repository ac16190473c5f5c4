package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetInteraction(t *testing.T) {
	s := openTestStore(t)

	in := Interaction{
		ID:          uuid.NewString(),
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SessionID:   "sess-1",
		UserQuery:   "What cloud services does Acme Corp offer?",
		Company:     "Acme Corp",
		Keywords:    `["cloud services"]`,
		SearchQuery: "Acme Corp cloud services services reviews official site",
		Sources:     `["http://acme.example/cloud"]`,
		Answer:      "Acme Corp offers managed cloud hosting.",
		Status:      StatusAnswered,
	}
	if err := s.SaveInteraction(in); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.GetInteraction(in.ID)
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.UserQuery != in.UserQuery || got.Company != in.Company || got.Status != in.Status {
		t.Errorf("got %+v, want %+v", got, in)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestGetInteraction_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetInteraction("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveInteraction_Defaults(t *testing.T) {
	s := openTestStore(t)
	id := uuid.NewString()
	if err := s.SaveInteraction(Interaction{ID: id, SessionID: "s", UserQuery: "q"}); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}
	got, err := s.GetInteraction(id)
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.Status != StatusAnswered {
		t.Errorf("Status = %q, want default %q", got.Status, StatusAnswered)
	}
	if got.Keywords != "[]" || got.Sources != "[]" {
		t.Errorf("empty JSON fields = %q, %q, want []", got.Keywords, got.Sources)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestGetRecentInteractions_OrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.SaveInteraction(Interaction{
			ID:        fmt.Sprintf("ix-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			SessionID: "s",
			UserQuery: fmt.Sprintf("q-%d", i),
		})
		if err != nil {
			t.Fatalf("SaveInteraction %d: %v", i, err)
		}
	}

	got, err := s.GetRecentInteractions(3)
	if err != nil {
		t.Fatalf("GetRecentInteractions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
	if got[0].ID != "ix-4" || got[2].ID != "ix-2" {
		t.Errorf("order = [%s %s %s], want newest first", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestGetSessionInteractions(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, sess := range []string{"a", "b", "a"} {
		err := s.SaveInteraction(Interaction{
			ID:        fmt.Sprintf("ix-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			SessionID: sess,
			UserQuery: "q",
		})
		if err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	got, err := s.GetSessionInteractions("a")
	if err != nil {
		t.Fatalf("GetSessionInteractions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].ID != "ix-0" || got[1].ID != "ix-2" {
		t.Errorf("order = [%s %s], want oldest first", got[0].ID, got[1].ID)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := openTestStore(t)
	// Running migrate again must be a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
