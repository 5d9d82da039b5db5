package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicateHitFeedEvents removes sold_card_events rows that share a
// hit_feed_event_id before AutoMigrate adds the unique index. Databases
// written before the index existed can hold duplicates from overlapping
// correlation windows; the oldest row wins because it is the one the tally
// counted.
func cleanupDuplicateHitFeedEvents(db *gorm.DB) error {
	if !db.Migrator().HasTable("sold_card_events") {
		return nil
	}

	result := db.Exec(`
		DELETE FROM sold_card_events
		WHERE hit_feed_event_id IS NOT NULL
		AND id NOT IN (
			SELECT MIN(id)
			FROM sold_card_events
			WHERE hit_feed_event_id IS NOT NULL
			GROUP BY hit_feed_event_id
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate sold_card_events entries", result.RowsAffected)
	}
	return nil
}

// normalizeMiscTierName collapses the marketplace's two spellings of the
// Misc pack category so cost lookups and grouping see a single value.
func normalizeMiscTierName(db *gorm.DB) error {
	if !db.Migrator().HasTable("pack_series") {
		return nil
	}

	result := db.Exec(`UPDATE pack_series SET tier = 'Misc.' WHERE tier = 'Misc'`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Normalized %d pack_series tier values to 'Misc.'", result.RowsAffected)
	}
	return nil
}

// RunPreMigrations runs data cleanups that must land before AutoMigrate.
func RunPreMigrations(db *gorm.DB) error {
	if err := cleanupDuplicateHitFeedEvents(db); err != nil {
		return err
	}
	return normalizeMiscTierName(db)
}
