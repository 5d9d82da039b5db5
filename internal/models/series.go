package models

import (
	"time"
)

type SeriesStatus string

const (
	SeriesStatusActive   SeriesStatus = "active"
	SeriesStatusInactive SeriesStatus = "inactive"
)

// PackSeries is one trackable slab-pack product. Rows are created on first
// observation and updated on every poll; they are never deleted while
// historical events reference them.
type PackSeries struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"not null;index"`
	Tier      string       `json:"tier"` // pack category: Diamond, Emerald, Ruby, Gold, Silver, Misc.
	CostCents int64        `json:"cost_cents"`
	Status    SeriesStatus `json:"status" gorm:"index"`
	LastSeen  time.Time    `json:"last_seen"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SeriesProcessingState bounds the correlator's look-back window and makes
// cycles resumable. Timestamps only advance when a cycle commits.
type SeriesProcessingState struct {
	SeriesID             string     `json:"series_id" gorm:"primaryKey"`
	LastHitFeedCheckAt   *time.Time `json:"last_hit_feed_check_at"`
	LastCardsProcessedAt *time.Time `json:"last_cards_processed_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
