package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/un4givn/FlipForce/internal/models"
)

type fakeInventorySource struct {
	inventory *SeriesInventory
	invErr    error

	hitFeed      []HitFeedEvent
	hitFeedErr   error
	hitFeedCalls int
}

func (f *fakeInventorySource) FetchSeriesInventory(ctx context.Context, seriesID string) (*SeriesInventory, error) {
	return f.inventory, f.invErr
}

func (f *fakeInventorySource) FetchHitFeed(ctx context.Context, limit, offset int) ([]HitFeedEvent, error) {
	f.hitFeedCalls++
	return f.hitFeed, f.hitFeedErr
}

type fakeCycleStore struct {
	prior    []models.CardSnapshot
	state    models.SeriesProcessingState
	consumed map[string]bool

	committed *CycleBatch
	commitErr error
	stats     CommitStats
}

func (f *fakeCycleStore) PriorSnapshot(seriesID string) ([]models.CardSnapshot, error) {
	return f.prior, nil
}

func (f *fakeCycleStore) ProcessingState(seriesID string) (*models.SeriesProcessingState, error) {
	state := f.state
	state.SeriesID = seriesID
	return &state, nil
}

func (f *fakeCycleStore) FilterConsumedEventIDs(ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if f.consumed[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeCycleStore) CommitCycle(batch *CycleBatch) (*CommitStats, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.committed = batch
	stats := f.stats
	stats.SoldInserted = len(batch.Sold)
	return &stats, nil
}

func testInventory(cards ...models.CardSnapshot) *SeriesInventory {
	return &SeriesInventory{
		SeriesID:        "s1",
		Name:            "Baseball",
		CategoryName:    "Gold",
		Active:          true,
		PacksSold:       42,
		PacksTotal:      100,
		PremiumSlots:    1,
		NonPremiumSlots: 4,
		Tiers: []TierInventory{
			{APIID: "t1", Name: "Grail", IsPremium: true, Cards: cards},
		},
		ObservedAt: baseTime,
	}
}

func newTestTracker(t *testing.T, source InventorySource, store CycleStore) *Tracker {
	t.Helper()
	tracker := NewTracker(source, store, newTestCorrelator(t, nil), 50)
	tracker.now = func() time.Time { return baseTime.Add(time.Minute) }
	return tracker
}

func TestRunCycleFullReconciliation(t *testing.T) {
	remaining := missingCard("c-stay", "Grail", "Shohei Ohtani")
	soldCard := missingCard("c-sold", "Grail", "Mike Trout")
	swapCard := missingCard("c-swap", "Grail", "Juan Soto")
	swapCard.SetNumber = "999" // no event will fingerprint-match this

	source := &fakeInventorySource{
		inventory: testInventory(remaining),
		hitFeed:   []HitFeedEvent{feedEvent("e1", 2*time.Second, "Mike Trout")},
	}
	store := &fakeCycleStore{
		prior:    []models.CardSnapshot{remaining, soldCard, swapCard},
		consumed: map[string]bool{},
	}
	tracker := newTestTracker(t, source, store)

	result, err := tracker.RunCycle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if result.Stage != StagePersisted {
		t.Errorf("expected PERSISTED stage, got %s", result.Stage)
	}
	if result.StillCount != 1 || result.NewCount != 0 {
		t.Errorf("expected 1 still / 0 new, got %d / %d", result.StillCount, result.NewCount)
	}
	if result.SoldCount != 1 || result.SwapSuspectCount != 1 {
		t.Errorf("expected 1 sold / 1 swap, got %d / %d", result.SoldCount, result.SwapSuspectCount)
	}
	if result.EVSnapshot == nil {
		t.Fatal("a persisted cycle must carry its EV snapshot")
	}
	if result.EVSnapshot.SeriesID != "s1" {
		t.Errorf("EV snapshot series wrong: %s", result.EVSnapshot.SeriesID)
	}

	batch := store.committed
	if batch == nil {
		t.Fatal("cycle should commit a batch")
	}
	if len(batch.RemovedCardIDs) != 2 {
		t.Errorf("both missing cards should be removed from the snapshot, got %v", batch.RemovedCardIDs)
	}
	if len(batch.Sold) != 1 || batch.Sold[0].CardID != "c-sold" {
		t.Errorf("sold batch wrong: %+v", batch.Sold)
	}
	if len(batch.Swaps) != 1 || batch.Swaps[0].CardID != "c-swap" {
		t.Errorf("swap batch wrong: %+v", batch.Swaps)
	}
	if batch.PacksSold != 42 || batch.PacksTotal != 100 {
		t.Errorf("counters not carried: %d / %d", batch.PacksSold, batch.PacksTotal)
	}
	if batch.EVROI == nil || batch.EVROI.Snapshot.SeriesID != "s1" {
		t.Error("EV snapshot should be part of the batch")
	}
	if batch.Series.CostCents != 10000 {
		t.Errorf("Gold static cost should resolve to 10000, got %d", batch.Series.CostCents)
	}
}

func TestRunCycleEveryMissingCardClassifiedOnce(t *testing.T) {
	cards := []models.CardSnapshot{
		missingCard("c1", "Grail", "A"),
		missingCard("c2", "Grail", "B"),
		missingCard("c3", "Grail", "C"),
	}
	source := &fakeInventorySource{
		inventory: testInventory(),
		hitFeed:   []HitFeedEvent{feedEvent("e1", 2*time.Second, "B")},
	}
	source.inventory.Active = false // drained series, empty inventory is fine
	store := &fakeCycleStore{prior: cards, consumed: map[string]bool{}}
	tracker := newTestTracker(t, source, store)

	result, err := tracker.RunCycle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if result.SoldCount+result.SwapSuspectCount != len(cards) {
		t.Errorf("every missing card must land in exactly one ledger: %d sold + %d swaps != %d",
			result.SoldCount, result.SwapSuspectCount, len(cards))
	}
}

func TestRunCycleImplausibleEmptyInventory(t *testing.T) {
	source := &fakeInventorySource{inventory: testInventory()}
	store := &fakeCycleStore{
		prior:    []models.CardSnapshot{missingCard("c1", "Grail", "A")},
		consumed: map[string]bool{},
	}
	tracker := newTestTracker(t, source, store)

	result, err := tracker.RunCycle(context.Background(), "s1")
	if !errors.Is(err, ErrImplausibleEmptyInventory) {
		t.Fatalf("expected ErrImplausibleEmptyInventory, got %v", err)
	}
	if result.Stage != StageFetched {
		t.Errorf("cycle should stop at FETCHED, got %s", result.Stage)
	}
	if store.committed != nil {
		t.Error("nothing may be committed on an implausible inventory")
	}
}

func TestRunCycleSkipsHitFeedWhenNothingMissing(t *testing.T) {
	card := missingCard("c1", "Grail", "A")
	source := &fakeInventorySource{inventory: testInventory(card)}
	store := &fakeCycleStore{prior: []models.CardSnapshot{card}, consumed: map[string]bool{}}
	tracker := newTestTracker(t, source, store)

	if _, err := tracker.RunCycle(context.Background(), "s1"); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if source.hitFeedCalls != 0 {
		t.Errorf("hit feed should not be fetched with no missing cards, got %d calls", source.hitFeedCalls)
	}
}

func TestRunCycleFiltersStaleAndConsumedEvents(t *testing.T) {
	card := missingCard("c1", "Grail", "Mike Trout")
	lastCheck := baseTime.Add(3 * time.Second)

	source := &fakeInventorySource{
		inventory: testInventory(),
		// e-old predates the watermark; e-consumed is already bound in the
		// database; only e-fresh is eligible.
		hitFeed: []HitFeedEvent{
			feedEvent("e-old", 2*time.Second, "Mike Trout"),
			feedEvent("e-consumed", 10*time.Second, "Mike Trout"),
			feedEvent("e-fresh", 20*time.Second, "Mike Trout"),
		},
	}
	source.inventory.Active = false
	store := &fakeCycleStore{
		prior:    []models.CardSnapshot{card},
		state:    models.SeriesProcessingState{LastHitFeedCheckAt: &lastCheck},
		consumed: map[string]bool{"e-consumed": true},
	}
	tracker := newTestTracker(t, source, store)

	result, err := tracker.RunCycle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if result.SoldCount != 1 {
		t.Fatalf("expected 1 sold, got %d", result.SoldCount)
	}
	sold := store.committed.Sold[0]
	if sold.HitFeedEventID == nil || *sold.HitFeedEventID != "e-fresh" {
		t.Errorf("only the fresh unconsumed event should match, got %v", sold.HitFeedEventID)
	}
}

func TestRunCycleCommitFailureLeavesConsumedCacheClean(t *testing.T) {
	card := missingCard("c1", "Grail", "Mike Trout")
	source := &fakeInventorySource{
		inventory: testInventory(),
		hitFeed:   []HitFeedEvent{feedEvent("e1", 2*time.Second, "Mike Trout")},
	}
	source.inventory.Active = false
	store := &fakeCycleStore{
		prior:     []models.CardSnapshot{card},
		consumed:  map[string]bool{},
		commitErr: errors.New("disk full"),
	}
	tracker := newTestTracker(t, source, store)

	result, err := tracker.RunCycle(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected commit error")
	}
	if result.Stage != StageAggregated {
		t.Errorf("cycle should report AGGREGATED as the last completed stage, got %s", result.Stage)
	}
	if tracker.correlator.IsConsumed("e1") {
		t.Error("an aborted commit must not leave the event marked consumed")
	}

	// Retry with a healthy store: the event is still available.
	store.commitErr = nil
	result, err = tracker.RunCycle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if result.SoldCount != 1 {
		t.Errorf("retry should correlate the same event, got %d sold", result.SoldCount)
	}
	if !tracker.correlator.IsConsumed("e1") {
		t.Error("committed cycle should mark the event consumed")
	}
}

func TestRunCycleIdempotentWhenNothingChanges(t *testing.T) {
	card := missingCard("c1", "Grail", "A")
	source := &fakeInventorySource{inventory: testInventory(card)}
	store := &fakeCycleStore{prior: []models.CardSnapshot{card}, consumed: map[string]bool{}}
	tracker := newTestTracker(t, source, store)

	for i := 0; i < 2; i++ {
		result, err := tracker.RunCycle(context.Background(), "s1")
		if err != nil {
			t.Fatalf("RunCycle %d: %v", i, err)
		}
		if result.SoldCount != 0 || result.SwapSuspectCount != 0 || result.NewCount != 0 {
			t.Errorf("run %d: unchanged inventory should produce no records: %+v", i, result)
		}
	}
}

func TestRunCycleCancelledContextAbortsBeforeCommit(t *testing.T) {
	card := missingCard("c1", "Grail", "A")
	source := &fakeInventorySource{inventory: testInventory(card)}
	store := &fakeCycleStore{prior: []models.CardSnapshot{card}, consumed: map[string]bool{}}
	tracker := newTestTracker(t, source, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tracker.RunCycle(ctx, "s1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.committed != nil {
		t.Error("a cancelled cycle must not commit")
	}
}
