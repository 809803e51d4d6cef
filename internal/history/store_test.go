package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"shikiwatch/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "journal", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	rec, err := store.Record(ctx, history.Record{
		UserID:   7,
		RateID:   101,
		ItemName: "Shingeki no Kyojin",
		Episode:  13,
		Outcome:  history.OutcomeUpdated,
		Message:  "Updated Shingeki no Kyojin to episode 13",
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	if rec.RecordedAt.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestRecordRequiresOutcome(t *testing.T) {
	store := openStore(t)
	if _, err := store.Record(context.Background(), history.Record{ItemName: "x"}); err == nil {
		t.Fatal("expected error without outcome")
	}
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		_, err := store.Record(ctx, history.Record{
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			ItemName:   "Mushishi",
			Episode:    i + 1,
			Outcome:    history.OutcomeUpdated,
		})
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	recent, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	for i, want := range []int{5, 4, 3} {
		if recent[i].Episode != want {
			t.Fatalf("record %d: expected episode %d, got %d", i, want, recent[i].Episode)
		}
	}
	if !recent[0].RecordedAt.Equal(base.Add(4 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", recent[0].RecordedAt)
	}
}

func TestStatsCountsOutcomes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	outcomes := []history.Outcome{
		history.OutcomeUpdated,
		history.OutcomeUpdated,
		history.OutcomeCompleted,
		history.OutcomeRejected,
		history.OutcomeNoMatch,
	}
	for _, outcome := range outcomes {
		if _, err := store.Record(ctx, history.Record{Outcome: outcome}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 5 {
		t.Fatalf("expected total 5, got %d", stats.Total)
	}
	if stats.ByOutcome[history.OutcomeUpdated] != 2 {
		t.Fatalf("expected 2 updated, got %d", stats.ByOutcome[history.OutcomeUpdated])
	}
	if stats.ByOutcome[history.OutcomeFailed] != 0 {
		t.Fatalf("expected 0 failed, got %d", stats.ByOutcome[history.OutcomeFailed])
	}
	if stats.Last.IsZero() {
		t.Fatal("expected last timestamp")
	}
}

func TestStatsEmptyJournal(t *testing.T) {
	store := openStore(t)
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 || !stats.Last.IsZero() {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Record{Outcome: history.OutcomeFailed, ItemName: "x"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	recent, err := reopened.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != history.OutcomeFailed {
		t.Fatalf("unexpected records %+v", recent)
	}
}
