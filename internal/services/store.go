package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/un4givn/FlipForce/internal/models"
)

// Store is the persistence adapter for reconciliation cycles. Reads happen
// before a cycle computes; all of a cycle's writes go through CommitCycle in
// a single transaction so a reader can never observe, say, a sold event
// without the matching snapshot removal.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// PriorSnapshot loads the most recent committed card inventory for a series.
func (s *Store) PriorSnapshot(seriesID string) ([]models.CardSnapshot, error) {
	var cards []models.CardSnapshot
	if err := s.db.Where("series_id = ?", seriesID).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("load prior snapshot for series %s: %w", seriesID, err)
	}
	return cards, nil
}

// ProcessingState loads the per-series processing watermarks, returning a
// zero-valued state for a series never processed before.
func (s *Store) ProcessingState(seriesID string) (*models.SeriesProcessingState, error) {
	var state models.SeriesProcessingState
	err := s.db.Where("series_id = ?", seriesID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.SeriesProcessingState{SeriesID: seriesID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load processing state for series %s: %w", seriesID, err)
	}
	return &state, nil
}

// FilterConsumedEventIDs returns which of the given hit-feed event ids are
// already bound to a sold event. The unique index on sold_card_events is
// the enforcement point; this read lets the correlator skip spent events
// up front.
func (s *Store) FilterConsumedEventIDs(ids []string) (map[string]bool, error) {
	consumed := make(map[string]bool)
	if len(ids) == 0 {
		return consumed, nil
	}

	var found []string
	err := s.db.Model(&models.SoldCardEvent{}).
		Where("hit_feed_event_id IN ?", ids).
		Pluck("hit_feed_event_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("filter consumed hit-feed event ids: %w", err)
	}
	for _, id := range found {
		consumed[id] = true
	}
	return consumed, nil
}

// CycleBatch is everything one reconciliation cycle wants to persist.
type CycleBatch struct {
	SeriesID string
	Series   models.PackSeries

	// UpsertCards replaces rows for cards still present and inserts rows
	// for new cards. RemovedCardIDs are deleted from the current snapshot
	// table, but only after their Sold/Swaps records are in: no snapshot
	// row disappears without a record capturing its last-known state.
	UpsertCards    []models.CardSnapshot
	RemovedCardIDs []string
	Sold           []models.SoldCardEvent
	Swaps          []models.SuspectedSwap

	PacksSold       int
	PacksTotal      int
	TotalValueCents int64

	EVROI *EVROIResult

	// HitFeedCheckedThrough advances the series' hit-feed watermark when
	// non-zero; it never moves the watermark backwards.
	HitFeedCheckedThrough time.Time
	ProcessedAt           time.Time
}

// CommitStats reports what a commit actually wrote.
type CommitStats struct {
	SoldInserted int
	// SoldSkipped counts sold rows rejected by the hit-feed event id
	// uniqueness constraint. A skipped row means the event already
	// resolved another card; the rest of the batch still commits.
	SoldSkipped int
	MaxSold     int
}

// CommitCycle persists one cycle's results atomically.
func (s *Store) CommitCycle(batch *CycleBatch) (*CommitStats, error) {
	stats := &CommitStats{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Series metadata upsert.
		series := batch.Series
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "tier", "cost_cents", "status", "last_seen", "updated_at",
			}),
		}).Create(&series).Error; err != nil {
			return fmt.Errorf("upsert series metadata: %w", err)
		}

		// Sold and swap records go in before any snapshot row is removed.
		if len(batch.Sold) > 0 {
			sold := make([]models.SoldCardEvent, len(batch.Sold))
			copy(sold, batch.Sold)
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "hit_feed_event_id"}},
				DoNothing: true,
			}).Create(&sold)
			if result.Error != nil {
				return fmt.Errorf("insert sold events: %w", result.Error)
			}
			stats.SoldInserted = int(result.RowsAffected)
			stats.SoldSkipped = len(batch.Sold) - stats.SoldInserted
		}

		if len(batch.Swaps) > 0 {
			swaps := make([]models.SuspectedSwap, len(batch.Swaps))
			copy(swaps, batch.Swaps)
			if err := tx.Create(&swaps).Error; err != nil {
				return fmt.Errorf("insert swap suspects: %w", err)
			}
		}

		// Snapshot replacement.
		if len(batch.UpsertCards) > 0 {
			cards := make([]models.CardSnapshot, len(batch.UpsertCards))
			copy(cards, batch.UpsertCards)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "series_id"}, {Name: "card_id"}},
				UpdateAll: true,
			}).Create(&cards).Error; err != nil {
				return fmt.Errorf("upsert card snapshots: %w", err)
			}
		}
		if len(batch.RemovedCardIDs) > 0 {
			if err := tx.Where("series_id = ? AND card_id IN ?", batch.SeriesID, batch.RemovedCardIDs).
				Delete(&models.CardSnapshot{}).Error; err != nil {
				return fmt.Errorf("remove departed card snapshots: %w", err)
			}
		}

		// Append-only counter and value logs.
		if err := tx.Create(&models.PackSnapshot{
			SeriesID:     batch.SeriesID,
			PacksSold:    batch.PacksSold,
			PacksTotal:   batch.PacksTotal,
			SnapshotTime: batch.ProcessedAt,
		}).Error; err != nil {
			return fmt.Errorf("append pack counter snapshot: %w", err)
		}
		if err := tx.Create(&models.PackValueSnapshot{
			SeriesID:                 batch.SeriesID,
			TotalEstimatedValueCents: batch.TotalValueCents,
			SnapshotTime:             batch.ProcessedAt,
		}).Error; err != nil {
			return fmt.Errorf("append pack value snapshot: %w", err)
		}

		// Max-sold high-water mark.
		maxSold, err := s.advanceMaxSold(tx, batch.SeriesID, batch.PacksSold, batch.ProcessedAt)
		if err != nil {
			return err
		}
		stats.MaxSold = maxSold

		// Cumulative confirmed-sales tally.
		if stats.SoldInserted > 0 {
			if err := s.bumpSalesTally(tx, batch.SeriesID, stats.SoldInserted, batch.ProcessedAt); err != nil {
				return err
			}
		}

		// EV/ROI snapshot with its tier contributions.
		if batch.EVROI != nil {
			snapshot := batch.EVROI.Snapshot
			if err := tx.Create(&snapshot).Error; err != nil {
				return fmt.Errorf("insert ev/roi snapshot: %w", err)
			}
			if len(batch.EVROI.Contributions) > 0 {
				contributions := make([]models.TierContribution, len(batch.EVROI.Contributions))
				copy(contributions, batch.EVROI.Contributions)
				for i := range contributions {
					contributions[i].SnapshotID = snapshot.ID
				}
				if err := tx.Create(&contributions).Error; err != nil {
					return fmt.Errorf("insert tier contributions: %w", err)
				}
			}
		}

		// Processing-state watermarks advance last, and only forward.
		return s.advanceProcessingState(tx, batch)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) advanceMaxSold(tx *gorm.DB, seriesID string, observed int, now time.Time) (int, error) {
	var record models.PackMaxSold
	err := tx.Where("series_id = ?", seriesID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.PackMaxSold{
			SeriesID:    seriesID,
			MaxSold:     AdvanceMaxSold(0, observed),
			LastUpdated: now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return 0, fmt.Errorf("create max-sold record: %w", err)
		}
		return record.MaxSold, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load max-sold record: %w", err)
	}

	next := AdvanceMaxSold(record.MaxSold, observed)
	if next != record.MaxSold {
		if err := tx.Model(&models.PackMaxSold{}).
			Where("series_id = ?", seriesID).
			Updates(map[string]interface{}{"max_sold": next, "last_updated": now}).Error; err != nil {
			return 0, fmt.Errorf("raise max-sold record: %w", err)
		}
	}
	return next, nil
}

func (s *Store) bumpSalesTally(tx *gorm.DB, seriesID string, sold int, now time.Time) error {
	var tally models.PackSalesTally
	err := tx.Where("series_id = ?", seriesID).First(&tally).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.PackSalesTally{
			SeriesID:    seriesID,
			TotalSold:   sold,
			LastChecked: now,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("load sales tally: %w", err)
	}
	return tx.Model(&models.PackSalesTally{}).
		Where("series_id = ?", seriesID).
		Updates(map[string]interface{}{
			"total_sold":   gorm.Expr("total_sold + ?", sold),
			"last_checked": now,
		}).Error
}

func (s *Store) advanceProcessingState(tx *gorm.DB, batch *CycleBatch) error {
	var state models.SeriesProcessingState
	err := tx.Where("series_id = ?", batch.SeriesID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.SeriesProcessingState{SeriesID: batch.SeriesID}
		processedAt := batch.ProcessedAt
		state.LastCardsProcessedAt = &processedAt
		if !batch.HitFeedCheckedThrough.IsZero() {
			checked := batch.HitFeedCheckedThrough
			state.LastHitFeedCheckAt = &checked
		}
		if err := tx.Create(&state).Error; err != nil {
			return fmt.Errorf("create processing state: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load processing state: %w", err)
	}

	updates := map[string]interface{}{"last_cards_processed_at": batch.ProcessedAt}
	if !batch.HitFeedCheckedThrough.IsZero() &&
		(state.LastHitFeedCheckAt == nil || batch.HitFeedCheckedThrough.After(*state.LastHitFeedCheckAt)) {
		updates["last_hit_feed_check_at"] = batch.HitFeedCheckedThrough
	}
	if err := tx.Model(&models.SeriesProcessingState{}).
		Where("series_id = ?", batch.SeriesID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("advance processing state: %w", err)
	}
	return nil
}
