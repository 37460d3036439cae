package snapshot_test

import (
	"context"
	"testing"
	"time"

	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/snapshot"
)

func TestMemoryStore_HitWithinTTL(t *testing.T) {
	st := snapshot.NewMemoryStore(time.Minute)
	ctx := context.Background()

	snap := snapshot.Snapshot{
		Page:     model.ResultPage{Items: []model.Listing{{ID: "a"}, {ID: "b"}}},
		StoredAt: time.Now(),
	}
	if err := st.Put(ctx, "fp1", snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := st.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a hit within TTL, got miss")
	}
	if len(got.Page.Items) != 2 {
		t.Errorf("got %d items, want 2", len(got.Page.Items))
	}
}

func TestMemoryStore_MissOnUnknownFingerprint(t *testing.T) {
	st := snapshot.NewMemoryStore(time.Minute)
	got, err := st.Get(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("expected miss for unknown fingerprint")
	}
}

func TestMemoryStore_ExpiredEntryReadsAsMiss(t *testing.T) {
	st := snapshot.NewMemoryStore(time.Minute)
	ctx := context.Background()

	stored := time.Now()
	if err := st.Put(ctx, "fp1", snapshot.Snapshot{StoredAt: stored}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	st.Now = func() time.Time { return stored.Add(2 * time.Minute) }

	got, err := st.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("entry past TTL must read as a miss")
	}
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	st := snapshot.NewMemoryStore(time.Minute)
	ctx := context.Background()

	_ = st.Put(ctx, "fp1", snapshot.Snapshot{
		Page:     model.ResultPage{Items: []model.Listing{{ID: "old"}}},
		StoredAt: time.Now(),
	})
	_ = st.Put(ctx, "fp1", snapshot.Snapshot{
		Page:     model.ResultPage{Items: []model.Listing{{ID: "new"}}},
		StoredAt: time.Now(),
	})

	got, _ := st.Get(ctx, "fp1")
	if got == nil || len(got.Page.Items) != 1 || got.Page.Items[0].ID != "new" {
		t.Errorf("expected the later write to win, got %+v", got)
	}
}
