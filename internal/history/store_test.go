package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, state := range []string{"completed", "failed", "cancelled"} {
		_, err := store.Add(ctx, Record{
			JobID:      "job-" + state,
			Category:   "export",
			Kind:       "trim",
			OutputPath: "/out/clip.mp4",
			State:      state,
			Duration:   time.Duration(i+1) * time.Second,
		})
		if err != nil {
			t.Fatalf("add %s: %v", state, err)
		}
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].State != "cancelled" {
		t.Fatalf("expected newest first, got %q", records[0].State)
	}
	if records[2].JobID != "job-completed" || records[2].Duration != time.Second {
		t.Fatalf("oldest record round-trip mismatch: %+v", records[2])
	}
	if records[0].CreatedAt.IsZero() || records[0].FinishedAt.IsZero() {
		t.Fatal("timestamps should default when unset")
	}
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Add(ctx, Record{JobID: "j", Category: "export", Kind: "concat", State: "completed"}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(records))
	}
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, Record{JobID: "j", Category: "enhance", Kind: "upscale", State: "completed"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history, got %d records", len(records))
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Add(context.Background(), Record{JobID: "j", Category: "export", Kind: "pip", State: "failed", Detail: "boom"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 || records[0].Detail != "boom" {
		t.Fatalf("record did not survive reopen: %+v", records)
	}
}
