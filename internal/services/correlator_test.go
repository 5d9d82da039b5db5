package services

import (
	"testing"
	"time"

	"github.com/un4givn/FlipForce/internal/models"
)

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func missingCard(cardID, tier, player string) models.CardSnapshot {
	return models.CardSnapshot{
		SeriesID:            "s1",
		CardID:              cardID,
		Tier:                tier,
		PlayerName:          player,
		SetName:             "2023 Topps Chrome",
		SetNumber:           "150",
		ParallelName:        "Refractor",
		ParallelNumber:      "12",
		GradingCompany:      "PSA",
		Overall:             fptr(10),
		EstimatedValueCents: 50000,
		SnapshotTime:        baseTime,
	}
}

func feedEvent(id string, offset time.Duration, player string) HitFeedEvent {
	return HitFeedEvent{
		ID:             id,
		PlayerName:     player,
		SetName:        "2023 Topps Chrome",
		SetNumber:      "150",
		ParallelName:   "Refractor",
		ParallelNumber: "12",
		GradingCompany: "PSA",
		Overall:        fptr(10),
		CreatedAt:      baseTime.Add(offset),
	}
}

func fptr(v float64) *float64 { return &v }

func newTestCorrelator(t *testing.T, verifyTiers []string) *Correlator {
	t.Helper()
	c, err := NewCorrelator(60*time.Second, verifyTiers)
	if err != nil {
		t.Fatalf("NewCorrelator: %v", err)
	}
	return c
}

func TestCorrelateSingleMatchIsVerifiedSale(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "Mike Trout")
	ev := feedEvent("e1", 2*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 || len(result.Swaps) != 0 {
		t.Fatalf("expected 1 sold / 0 swaps, got %d / %d", len(result.Sold), len(result.Swaps))
	}
	sold := result.Sold[0]
	if sold.Verification != models.VerificationHitFeed {
		t.Errorf("expected hit_feed verification, got %s", sold.Verification)
	}
	if sold.HitFeedEventID == nil || *sold.HitFeedEventID != "e1" {
		t.Errorf("expected hit feed event id e1, got %v", sold.HitFeedEventID)
	}
	if !sold.SoldAt.Equal(ev.CreatedAt) {
		t.Errorf("sold_at should be the event timestamp, got %v", sold.SoldAt)
	}
	if len(result.ConsumedEventIDs) != 1 || result.ConsumedEventIDs[0] != "e1" {
		t.Errorf("expected e1 consumed, got %v", result.ConsumedEventIDs)
	}
}

func TestCorrelateNoMatchVerifiedTierBecomesSwap(t *testing.T) {
	c := newTestCorrelator(t, []string{"Grail", "Chase"})
	card := missingCard("c1", "Grail", "Mike Trout")
	// Matching fingerprint but 40s outside the 60s window.
	ev := feedEvent("e1", 100*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(2*time.Minute))

	if len(result.Sold) != 0 || len(result.Swaps) != 1 {
		t.Fatalf("expected 0 sold / 1 swap, got %d / %d", len(result.Sold), len(result.Swaps))
	}
	swap := result.Swaps[0]
	if swap.CardID != "c1" || swap.ID == "" {
		t.Errorf("swap record malformed: %+v", swap)
	}
	if len(result.ConsumedEventIDs) != 0 {
		t.Errorf("no event should be consumed, got %v", result.ConsumedEventIDs)
	}
}

func TestCorrelateNoMatchUnverifiedTierDefaultsToSold(t *testing.T) {
	c := newTestCorrelator(t, []string{"Grail", "Chase"})
	card := missingCard("c1", "Base", "Mike Trout")
	now := baseTime.Add(2 * time.Minute)

	result := c.Correlate([]models.CardSnapshot{card}, nil, now)

	if len(result.Sold) != 1 || len(result.Swaps) != 0 {
		t.Fatalf("expected 1 sold / 0 swaps, got %d / %d", len(result.Sold), len(result.Swaps))
	}
	sold := result.Sold[0]
	if sold.Verification != models.VerificationDefault {
		t.Errorf("expected default verification, got %s", sold.Verification)
	}
	if sold.HitFeedEventID != nil {
		t.Errorf("default sale must not reference a hit-feed event")
	}
	if !sold.SoldAt.Equal(now) {
		t.Errorf("default sale sold_at should be processing time")
	}
}

func TestCorrelateVerifyAllTiersWhenListEmpty(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Base", "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, nil, baseTime.Add(time.Minute))

	if len(result.Swaps) != 1 {
		t.Fatalf("empty verify list should require corroboration for every tier, got %+v", result)
	}
}

func TestCorrelateAmbiguousPicksNearestEvent(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "Mike Trout")
	near := feedEvent("e-near", 2*time.Second, "Mike Trout")
	far := feedEvent("e-far", 40*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{far, near}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 {
		t.Fatalf("expected 1 sold, got %d", len(result.Sold))
	}
	sold := result.Sold[0]
	if sold.Verification != models.VerificationAmbiguous {
		t.Errorf("expected ambiguous verification, got %s", sold.Verification)
	}
	if sold.HitFeedEventID == nil || *sold.HitFeedEventID != "e-near" {
		t.Errorf("expected nearest event e-near, got %v", sold.HitFeedEventID)
	}
	if len(result.ConsumedEventIDs) != 1 || result.ConsumedEventIDs[0] != "e-near" {
		t.Errorf("only the winning event should be consumed, got %v", result.ConsumedEventIDs)
	}
}

func TestCorrelateAmbiguousTieBreaksOnEventID(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "Mike Trout")
	a := feedEvent("e-aaa", 5*time.Second, "Mike Trout")
	b := feedEvent("e-bbb", 5*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{b, a}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 || result.Sold[0].HitFeedEventID == nil || *result.Sold[0].HitFeedEventID != "e-aaa" {
		t.Fatalf("equal gaps should break on smaller event id, got %+v", result.Sold)
	}
}

func TestCorrelateEventConsumedOnlyOnce(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card1 := missingCard("c1", "Grail", "Mike Trout")
	card2 := missingCard("c2", "Grail", "Mike Trout")
	ev := feedEvent("e1", 2*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card1, card2}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 {
		t.Fatalf("one event can resolve only one card, got %d sold", len(result.Sold))
	}
	if len(result.Swaps) != 1 {
		t.Fatalf("second card should fall through to swap, got %d swaps", len(result.Swaps))
	}
}

func TestCorrelateSkipsPreviouslyConsumedEvents(t *testing.T) {
	c := newTestCorrelator(t, nil)
	c.MarkConsumed([]string{"e1"}, baseTime)

	card := missingCard("c1", "Grail", "Mike Trout")
	ev := feedEvent("e1", 2*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Sold) != 0 || len(result.Swaps) != 1 {
		t.Fatalf("consumed event must not match again: %d sold / %d swaps", len(result.Sold), len(result.Swaps))
	}
	if !c.IsConsumed("e1") {
		t.Error("e1 should still be marked consumed")
	}
}

func TestCorrelateDirectCardIDMatchBeatsWeakFingerprint(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "")
	ev := HitFeedEvent{
		ID:        "e1",
		CardID:    "c1",
		CreatedAt: baseTime.Add(3 * time.Second),
	}

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 || result.Sold[0].Verification != models.VerificationHitFeed {
		t.Fatalf("card id match should verify the sale even without a player name: %+v", result)
	}
}

func TestCorrelateEmptyPlayerNameFingerprintNeverMatches(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "")
	ev := feedEvent("e1", 2*time.Second, "")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Swaps) != 1 {
		t.Fatalf("empty player names must not fingerprint-match: %+v", result)
	}
}

func TestCorrelateEventBeforeLastSeenExcluded(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "Mike Trout")
	ev := feedEvent("e1", -5*time.Second, "Mike Trout")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Swaps) != 1 {
		t.Fatalf("events before the card's last-seen time must not match: %+v", result)
	}
}

func TestCorrelateFingerprintNormalization(t *testing.T) {
	c := newTestCorrelator(t, nil)
	card := missingCard("c1", "Grail", "  MIKE trout ")
	ev := feedEvent("e1", 2*time.Second, "mike TROUT")

	result := c.Correlate([]models.CardSnapshot{card}, []HitFeedEvent{ev}, baseTime.Add(time.Minute))

	if len(result.Sold) != 1 {
		t.Fatalf("case and whitespace differences should still match: %+v", result)
	}
}

func TestCorrelateCheckedThroughTracksLatestEvent(t *testing.T) {
	c := newTestCorrelator(t, nil)
	events := []HitFeedEvent{
		feedEvent("e1", 2*time.Second, "A"),
		feedEvent("e2", 30*time.Second, "B"),
		feedEvent("e3", 10*time.Second, "C"),
	}

	result := c.Correlate(nil, events, baseTime.Add(time.Minute))

	want := baseTime.Add(30 * time.Second)
	if !result.CheckedThrough.Equal(want) {
		t.Errorf("expected checked-through %v, got %v", want, result.CheckedThrough)
	}
}
