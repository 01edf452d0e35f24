package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStorePendingDeletes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "journal.db")

	st := NewSQLiteStore(Params{Path: path})
	if err := st.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := PendingDelete{GuildID: "G1", ChannelID: "C1", MessageID: "M2", DueAt: base.Add(time.Minute)}
	sooner := PendingDelete{GuildID: "G1", ChannelID: "C1", MessageID: "M1", DueAt: base.Add(5 * time.Second)}

	for _, d := range []PendingDelete{later, sooner} {
		if err := st.SavePendingDelete(ctx, d); err != nil {
			t.Fatalf("save %s: %v", d.MessageID, err)
		}
	}

	got, err := st.ListPendingDeletes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pending deletes, got %d", len(got))
	}
	if got[0].MessageID != "M1" || got[1].MessageID != "M2" {
		t.Fatalf("expected due-time order M1, M2; got %s, %s", got[0].MessageID, got[1].MessageID)
	}
	if !got[0].DueAt.Equal(sooner.DueAt) {
		t.Fatalf("due_at = %v, want %v", got[0].DueAt, sooner.DueAt)
	}
	if got[0].GuildID != "G1" || got[0].ChannelID != "C1" {
		t.Fatalf("unexpected row %#v", got[0])
	}

	if err := st.RemovePendingDelete(ctx, "C1", "M1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := st.RemovePendingDelete(ctx, "C1", "M1"); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}

	got, err = st.ListPendingDeletes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].MessageID != "M2" {
		t.Fatalf("expected only M2 left, got %#v", got)
	}
}

func TestSQLiteStoreUpsertReplacesDueTime(t *testing.T) {
	ctx := context.Background()

	st := NewSQLiteStore(Params{})
	if err := st.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	d := PendingDelete{GuildID: "G1", ChannelID: "C1", MessageID: "M1", DueAt: time.UnixMilli(1000)}
	if err := st.SavePendingDelete(ctx, d); err != nil {
		t.Fatalf("save: %v", err)
	}
	d.DueAt = time.UnixMilli(9000)
	if err := st.SavePendingDelete(ctx, d); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := st.ListPendingDeletes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(got))
	}
	if got[0].DueAt.UnixMilli() != 9000 {
		t.Fatalf("due_at = %d, want 9000", got[0].DueAt.UnixMilli())
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	st := NewSQLiteStore(Params{Path: path})
	if err := st.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.SavePendingDelete(ctx, PendingDelete{GuildID: "G1", ChannelID: "C1", MessageID: "M1", DueAt: time.UnixMilli(42)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLiteStore(Params{Path: path})
	if err := reopened.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ListPendingDeletes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].MessageID != "M1" {
		t.Fatalf("expected M1 to survive reopen, got %#v", got)
	}
}

func TestSQLiteStoreNotOpen(t *testing.T) {
	ctx := context.Background()
	st := NewSQLiteStore(Params{})

	if err := st.SavePendingDelete(ctx, PendingDelete{}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("save on closed store: got %v, want ErrNotOpen", err)
	}
	if _, err := st.ListPendingDeletes(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("list on closed store: got %v, want ErrNotOpen", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close on never-opened store: %v", err)
	}
}
