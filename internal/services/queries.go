package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/un4givn/FlipForce/internal/models"
)

// Read-side queries backing the HTTP API. These never mutate state; all
// writes go through CommitCycle.

// ListSeries returns every tracked series, most recently seen first.
func (s *Store) ListSeries() ([]models.PackSeries, error) {
	var series []models.PackSeries
	if err := s.db.Order("last_seen DESC").Find(&series).Error; err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return series, nil
}

// Series returns one series by id.
func (s *Store) Series(seriesID string) (*models.PackSeries, error) {
	var series models.PackSeries
	if err := s.db.Where("id = ?", seriesID).First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// CurrentInventory returns the live snapshot rows for a series, grouped by
// nothing; callers group by tier as needed.
func (s *Store) CurrentInventory(seriesID string) ([]models.CardSnapshot, error) {
	var cards []models.CardSnapshot
	err := s.db.Where("series_id = ?", seriesID).
		Order("tier, card_id").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("load current inventory: %w", err)
	}
	return cards, nil
}

// SoldEvents returns the most recent sold-card events for a series.
func (s *Store) SoldEvents(seriesID string, limit int) ([]models.SoldCardEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []models.SoldCardEvent
	err := s.db.Where("series_id = ?", seriesID).
		Order("sold_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("load sold events: %w", err)
	}
	return events, nil
}

// Swaps returns the most recent suspected swap records for a series.
func (s *Store) Swaps(seriesID string, limit int) ([]models.SuspectedSwap, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var swaps []models.SuspectedSwap
	err := s.db.Where("series_id = ?", seriesID).
		Order("disappeared_at DESC").
		Limit(limit).
		Find(&swaps).Error
	if err != nil {
		return nil, fmt.Errorf("load suspected swaps: %w", err)
	}
	return swaps, nil
}

// EVROIHistory returns EV/ROI snapshots for a series since the given time,
// oldest first, with tier contributions attached.
func (s *Store) EVROIHistory(seriesID string, since time.Time) ([]models.EVROISnapshot, error) {
	var snapshots []models.EVROISnapshot
	q := s.db.Where("series_id = ?", seriesID)
	if !since.IsZero() {
		q = q.Where("snapshot_time >= ?", since)
	}
	err := q.Order("snapshot_time ASC").
		Preload("TierContributions").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("load ev/roi history: %w", err)
	}
	return snapshots, nil
}

// LatestEVROI returns the most recent EV/ROI snapshot for a series, or nil
// if none exists yet.
func (s *Store) LatestEVROI(seriesID string) (*models.EVROISnapshot, error) {
	var snapshots []models.EVROISnapshot
	err := s.db.Where("series_id = ?", seriesID).
		Order("snapshot_time DESC").
		Limit(1).
		Preload("TierContributions").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("load latest ev/roi snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// CounterHistory returns the packs-sold counter snapshots for a series
// since the given time, oldest first.
func (s *Store) CounterHistory(seriesID string, since time.Time) ([]models.PackSnapshot, error) {
	var snapshots []models.PackSnapshot
	q := s.db.Where("series_id = ?", seriesID)
	if !since.IsZero() {
		q = q.Where("snapshot_time >= ?", since)
	}
	if err := q.Order("snapshot_time ASC").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("load counter history: %w", err)
	}
	return snapshots, nil
}

// ValueHistory returns the total-inventory-value snapshots for a series
// since the given time, oldest first.
func (s *Store) ValueHistory(seriesID string, since time.Time) ([]models.PackValueSnapshot, error) {
	var snapshots []models.PackValueSnapshot
	q := s.db.Where("series_id = ?", seriesID)
	if !since.IsZero() {
		q = q.Where("snapshot_time >= ?", since)
	}
	if err := q.Order("snapshot_time ASC").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("load value history: %w", err)
	}
	return snapshots, nil
}

// MaxSold returns the high-water packs-sold mark for a series. A series
// never observed yet reports zero.
func (s *Store) MaxSold(seriesID string) (int, error) {
	var records []models.PackMaxSold
	err := s.db.Where("series_id = ?", seriesID).Limit(1).Find(&records).Error
	if err != nil {
		return 0, fmt.Errorf("load max-sold record: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return records[0].MaxSold, nil
}

// SalesTally returns the cumulative reconciled-sale count for a series.
func (s *Store) SalesTally(seriesID string) (int, error) {
	var tallies []models.PackSalesTally
	err := s.db.Where("series_id = ?", seriesID).Limit(1).Find(&tallies).Error
	if err != nil {
		return 0, fmt.Errorf("load sales tally: %w", err)
	}
	if len(tallies) == 0 {
		return 0, nil
	}
	return tallies[0].TotalSold, nil
}

// MarketMover reports how a series' expected value moved over a window.
type MarketMover struct {
	SeriesID        string  `json:"series_id"`
	SeriesName      string  `json:"series_name"`
	FirstValueCents int64   `json:"first_value_cents"`
	LastValueCents  int64   `json:"last_value_cents"`
	DeltaCents      int64   `json:"delta_cents"`
	DeltaPercent    float64 `json:"delta_percent"`
}

// MarketMovers compares each series' first and last EV snapshot since the
// given time and returns the series sorted by absolute movement, largest
// first. Series with fewer than two snapshots in the window are skipped.
func (s *Store) MarketMovers(since time.Time) ([]MarketMover, error) {
	series, err := s.ListSeries()
	if err != nil {
		return nil, err
	}

	var movers []MarketMover
	for _, sr := range series {
		var bounds []models.EVROISnapshot
		err := s.db.Where("series_id = ? AND snapshot_time >= ?", sr.ID, since).
			Order("snapshot_time ASC").
			Find(&bounds).Error
		if err != nil {
			return nil, fmt.Errorf("load ev snapshots for series %s: %w", sr.ID, err)
		}
		if len(bounds) < 2 {
			continue
		}

		first := bounds[0].ExpectedValueCents
		last := bounds[len(bounds)-1].ExpectedValueCents
		mover := MarketMover{
			SeriesID:        sr.ID,
			SeriesName:      sr.Name,
			FirstValueCents: first,
			LastValueCents:  last,
			DeltaCents:      last - first,
		}
		if first != 0 {
			mover.DeltaPercent = float64(last-first) / float64(first) * 100
		}
		movers = append(movers, mover)
	}

	sort.Slice(movers, func(i, j int) bool {
		return absDelta(movers[i]) > absDelta(movers[j])
	})
	return movers, nil
}

func absDelta(m MarketMover) int64 {
	if m.DeltaCents < 0 {
		return -m.DeltaCents
	}
	return m.DeltaCents
}
