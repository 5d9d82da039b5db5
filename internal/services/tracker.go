package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/un4givn/FlipForce/internal/metrics"
	"github.com/un4givn/FlipForce/internal/models"
)

// CycleStage is the furthest step a reconciliation cycle completed.
type CycleStage string

const (
	StageNone       CycleStage = ""
	StageFetched    CycleStage = "FETCHED"
	StageDiffed     CycleStage = "DIFFED"
	StageCorrelated CycleStage = "CORRELATED"
	StageAggregated CycleStage = "AGGREGATED"
	StagePersisted  CycleStage = "PERSISTED"
)

// CycleResult summarizes one series' reconciliation cycle.
type CycleResult struct {
	SeriesID         string                `json:"series_id"`
	Stage            CycleStage            `json:"stage"`
	StillCount       int                   `json:"still_count"`
	NewCount         int                   `json:"new_count"`
	SoldCount        int                   `json:"sold_count"`
	SwapSuspectCount int                   `json:"swap_suspect_count"`
	SoldSkipped      int                   `json:"sold_skipped"`
	MaxSold          int                   `json:"max_sold"`
	EVSnapshot       *models.EVROISnapshot `json:"ev_snapshot,omitempty"`
	Duration         time.Duration         `json:"duration"`
}

// InventorySource supplies series inventories and hit-feed events.
// Satisfied by ArenaClubClient.
type InventorySource interface {
	FetchSeriesInventory(ctx context.Context, seriesID string) (*SeriesInventory, error)
	FetchHitFeed(ctx context.Context, limit, offset int) ([]HitFeedEvent, error)
}

// CycleStore is the slice of the persistence adapter a cycle needs.
// Satisfied by Store.
type CycleStore interface {
	PriorSnapshot(seriesID string) ([]models.CardSnapshot, error)
	ProcessingState(seriesID string) (*models.SeriesProcessingState, error)
	FilterConsumedEventIDs(ids []string) (map[string]bool, error)
	CommitCycle(batch *CycleBatch) (*CommitStats, error)
}

// Tracker drives one reconciliation cycle per series: fetch, diff,
// correlate, aggregate, persist. Everything between the initial loads and
// the final commit is pure computation over immutable inputs, so an aborted
// cycle can always be retried against the same committed state.
type Tracker struct {
	source          InventorySource
	store           CycleStore
	correlator      *Correlator
	hitFeedPageSize int

	now func() time.Time
}

func NewTracker(source InventorySource, store CycleStore, correlator *Correlator, hitFeedPageSize int) *Tracker {
	if hitFeedPageSize <= 0 {
		hitFeedPageSize = 50
	}
	return &Tracker{
		source:          source,
		store:           store,
		correlator:      correlator,
		hitFeedPageSize: hitFeedPageSize,
		now:             time.Now,
	}
}

// RunCycle runs one full reconciliation cycle for a series. On error the
// returned result reports the last stage that completed; nothing past it
// was persisted.
func (t *Tracker) RunCycle(ctx context.Context, seriesID string) (*CycleResult, error) {
	start := t.now().UTC()
	result := &CycleResult{SeriesID: seriesID, Stage: StageNone}
	defer func() {
		result.Duration = t.now().Sub(start)
		metrics.CycleDuration.Observe(result.Duration.Seconds())
	}()

	// FETCH
	inv, err := t.source.FetchSeriesInventory(ctx, seriesID)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
		return result, fmt.Errorf("fetch inventory for series %s: %w", seriesID, err)
	}
	result.SeriesID = inv.SeriesID
	result.Stage = StageFetched

	series := SeriesFromInventory(inv)

	prior, err := t.store.PriorSnapshot(inv.SeriesID)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
		return result, err
	}
	state, err := t.store.ProcessingState(inv.SeriesID)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
		return result, err
	}

	// DIFF
	current := inv.Cards()
	diff, err := DiffSnapshots(prior, current, inv.Active)
	if err != nil {
		if errors.Is(err, ErrImplausibleEmptyInventory) {
			metrics.ImplausibleInventoryFaults.Inc()
			metrics.CyclesTotal.WithLabelValues("implausible_inventory").Inc()
			log.Printf("Tracker: series %s reported empty inventory while active, refusing to classify", inv.SeriesID)
		}
		return result, err
	}
	result.Stage = StageDiffed
	result.StillCount = len(diff.StillPresent)
	result.NewCount = len(diff.New)

	// CORRELATE
	var correlation CorrelationResult
	if len(diff.Missing) > 0 {
		events, err := t.hitFeedEventsSince(ctx, state.LastHitFeedCheckAt)
		if err != nil {
			metrics.CyclesTotal.WithLabelValues("fetch_failed").Inc()
			return result, fmt.Errorf("fetch hit feed for series %s: %w", inv.SeriesID, err)
		}
		correlation = t.correlator.Correlate(diff.Missing, events, start)
	}
	result.Stage = StageCorrelated
	result.SoldCount = len(correlation.Sold)
	result.SwapSuspectCount = len(correlation.Swaps)

	// AGGREGATE
	evroi := ComputeEVROI(inv.SeriesID, inv.Tiers, inv.PremiumSlots, inv.NonPremiumSlots, series.CostCents, start)
	result.Stage = StageAggregated

	// PERSIST, everything or nothing. A cancelled context aborts before
	// the commit so the next cycle retries from the same committed state.
	if err := ctx.Err(); err != nil {
		return result, err
	}

	batch := &CycleBatch{
		SeriesID:              inv.SeriesID,
		Series:                series,
		UpsertCards:           append(append([]models.CardSnapshot{}, diff.StillPresent...), diff.New...),
		RemovedCardIDs:        cardIDs(diff.Missing),
		Sold:                  correlation.Sold,
		Swaps:                 correlation.Swaps,
		PacksSold:             inv.PacksSold,
		PacksTotal:            inv.PacksTotal,
		TotalValueCents:       inv.TotalValueCents(),
		EVROI:                 evroi,
		HitFeedCheckedThrough: correlation.CheckedThrough,
		ProcessedAt:           start,
	}

	stats, err := t.store.CommitCycle(batch)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("commit_failed").Inc()
		return result, fmt.Errorf("commit cycle for series %s: %w", inv.SeriesID, err)
	}
	result.Stage = StagePersisted
	result.SoldSkipped = stats.SoldSkipped
	result.MaxSold = stats.MaxSold
	result.EVSnapshot = &evroi.Snapshot

	t.correlator.MarkConsumed(correlation.ConsumedEventIDs, start)
	t.recordCycleMetrics(inv, series, evroi, correlation, stats)

	return result, nil
}

// hitFeedEventsSince fetches the newest hit-feed page and bounds it to the
// series' look-back window: only events after the last successful check,
// and never events already bound to a sold event.
func (t *Tracker) hitFeedEventsSince(ctx context.Context, lastCheck *time.Time) ([]HitFeedEvent, error) {
	events, err := t.source.FetchHitFeed(ctx, t.hitFeedPageSize, 0)
	if err != nil {
		return nil, err
	}

	if lastCheck != nil {
		filtered := make([]HitFeedEvent, 0, len(events))
		for _, ev := range events {
			if ev.CreatedAt.After(*lastCheck) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	consumed, err := t.store.FilterConsumedEventIDs(ids)
	if err != nil {
		return nil, err
	}
	fresh := make([]HitFeedEvent, 0, len(events))
	for _, ev := range events {
		if !consumed[ev.ID] {
			fresh = append(fresh, ev)
		}
	}
	return fresh, nil
}

func (t *Tracker) recordCycleMetrics(inv *SeriesInventory, series models.PackSeries, evroi *EVROIResult, correlation CorrelationResult, stats *CommitStats) {
	metrics.CyclesTotal.WithLabelValues("persisted").Inc()
	for _, sold := range correlation.Sold {
		metrics.SoldEventsTotal.WithLabelValues(string(sold.Verification)).Inc()
	}
	metrics.SwapSuspectsTotal.Add(float64(len(correlation.Swaps)))
	metrics.DuplicateHitEventsTotal.Add(float64(stats.SoldSkipped))

	metrics.SeriesExpectedValueCents.WithLabelValues(inv.SeriesID, series.Name).Set(float64(evroi.Snapshot.ExpectedValueCents))
	if evroi.Snapshot.ROI != nil {
		metrics.SeriesROI.WithLabelValues(inv.SeriesID, series.Name).Set(*evroi.Snapshot.ROI)
	}
	metrics.SeriesMaxSold.WithLabelValues(inv.SeriesID, series.Name).Set(float64(stats.MaxSold))
}

func cardIDs(cards []models.CardSnapshot) []string {
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.CardID)
	}
	return ids
}
