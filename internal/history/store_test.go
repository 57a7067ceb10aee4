package history

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"solbot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListBindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordBinding(ctx, 1, "addr-one"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordBinding(ctx, 2, "addr-two"); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.ListBindings(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
	// Newest first.
	if got[0].Address != "addr-two" || got[0].UserID != 2 {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("created_at should be populated")
	}
}

func TestRecordAndListQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordQuery(ctx, domain.QueryRecord{Address: "a", Sol: 1.25, OK: true}); err != nil {
		t.Fatalf("record ok: %v", err)
	}
	if err := s.RecordQuery(ctx, domain.QueryRecord{Address: "b", OK: false, Detail: "status 502"}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	got, err := s.ListQueries(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(got))
	}
	if got[0].Address != "b" || got[0].OK || got[0].Detail != "status 502" {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Sol != 1.25 || !got[1].OK {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
}

func TestListLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordBinding(ctx, int64(i), "addr"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := s.ListBindings(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected limit to cap results at 3, got %d", len(got))
	}
}
