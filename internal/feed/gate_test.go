package feed_test

import (
	"fmt"
	"testing"

	"servimap/feed-service/internal/feed"
	"servimap/feed-service/internal/model"
)

func listingsWithImages(n int) []model.Listing {
	items := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.Listing{
			ID:       fmt.Sprintf("item-%d", i),
			ImageURL: fmt.Sprintf("https://img.example/%d.jpg", i),
		})
	}
	return items
}

func TestGate_ClosedUntilAllVisibleReady(t *testing.T) {
	var g feed.Gate
	g.Init(listingsWithImages(10), 8)

	if g.Open() {
		t.Fatal("gate must be closed before any image reports ready")
	}

	// Only the visible batch (first 8) is tracked; items 8 and 9 are not.
	for i := 0; i < 7; i++ {
		g.MarkReady(fmt.Sprintf("item-%d", i))
	}
	if g.Open() {
		t.Error("gate must stay closed with one tracked image outstanding")
	}

	g.MarkReady("item-7")
	if !g.Open() {
		t.Error("gate must open once all tracked images are ready")
	}
}

func TestGate_ItemsBeyondVisibleBatchNotTracked(t *testing.T) {
	var g feed.Gate
	g.Init(listingsWithImages(20), 8)

	for i := 0; i < 8; i++ {
		g.MarkReady(fmt.Sprintf("item-%d", i))
	}
	if !g.Open() {
		t.Error("images beyond the visible batch must not hold the gate")
	}
}

// The timeout force-opens the gate with readiness incomplete.
func TestGate_TimeoutForcesOpen(t *testing.T) {
	var g feed.Gate
	g.Init(listingsWithImages(8), 8)

	for i := 0; i < 5; i++ {
		g.MarkReady(fmt.Sprintf("item-%d", i))
	}
	if g.Open() {
		t.Fatal("gate should be closed with 5 of 8 ready")
	}

	g.ForceOpen()
	if !g.Open() {
		t.Error("gate must open after the timeout fires")
	}
	if !g.TimedOut() {
		t.Error("TimedOut must report the forced open")
	}
}

// Init runs at most once per cycle — a second data arrival must not
// reset tracking.
func TestGate_InitIsOneShot(t *testing.T) {
	var g feed.Gate
	g.Init(listingsWithImages(3), 8)
	for i := 0; i < 3; i++ {
		g.MarkReady(fmt.Sprintf("item-%d", i))
	}
	if !g.Open() {
		t.Fatal("gate should be open with all three ready")
	}

	// Second arrival for the same cycle (e.g. the jobs half resolving
	// after the services half): must be a no-op.
	g.Init(listingsWithImages(8), 8)
	if !g.Open() {
		t.Error("re-Init must not reset the gate")
	}
	if g.Pending() != 0 {
		t.Errorf("Pending() = %d after ignored re-init, want 0", g.Pending())
	}
}

func TestGate_EmptyBatchTriviallyOpen(t *testing.T) {
	var g feed.Gate
	g.Init(nil, 8)
	if !g.Open() {
		t.Error("an empty result must leave the gate trivially open")
	}
}

func TestGate_ItemsWithoutImagesAreReadyImmediately(t *testing.T) {
	items := []model.Listing{
		{ID: "a", ImageURL: "https://img.example/a.jpg"},
		{ID: "b"}, // no image — nothing to wait for
		{ID: "c"}, // no image
	}
	var g feed.Gate
	g.Init(items, 8)

	if g.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 (only the item with an image)", g.Pending())
	}
	g.MarkReady("a")
	if !g.Open() {
		t.Error("gate must open once the only imaged item is ready")
	}
}

func TestGate_NotOpenBeforeInit(t *testing.T) {
	var g feed.Gate
	if g.Open() {
		t.Error("an uninitialized gate must not report open")
	}
}

// Readiness is a set: signals arriving before Init, duplicates, and
// arbitrary order all converge to the same state.
func TestGate_OrderIndependentReadiness(t *testing.T) {
	var g feed.Gate
	g.MarkReady("item-1")
	g.MarkReady("item-0")
	g.MarkReady("item-0") // duplicate

	g.Init(listingsWithImages(2), 8)
	if !g.Open() {
		t.Error("signals that arrived before Init must count")
	}
}
