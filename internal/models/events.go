package models

import (
	"time"
)

// Verification describes how a sold-card classification was corroborated.
type Verification string

const (
	// VerificationHitFeed: exactly one hit-feed event matched the card's
	// fingerprint inside the correlation window.
	VerificationHitFeed Verification = "hit_feed"
	// VerificationAmbiguous: multiple events matched; the nearest-in-time
	// one was consumed but the match carries lower confidence.
	VerificationAmbiguous Verification = "ambiguous"
	// VerificationDefault: the card's tier is not hit-feed verified, so the
	// disappearance was classified sold without corroboration.
	VerificationDefault Verification = "default"
)

// SoldCardEvent is an immutable record of a card leaving a pack as a
// confirmed sale. It carries the card's last-known snapshot attributes and,
// when a hit-feed event corroborated the sale, the event's payload.
type SoldCardEvent struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	SeriesID string `json:"series_id" gorm:"index;not null"`
	CardID   string `json:"card_id" gorm:"index;not null"`

	// Last-known snapshot attributes.
	SnapshotTier           string   `json:"snapshot_tier"`
	SnapshotValueCents     int64    `json:"snapshot_value_cents"`
	SnapshotPlayerName     string   `json:"snapshot_player_name"`
	SnapshotSetName        string   `json:"snapshot_set_name"`
	SnapshotInsertName     string   `json:"snapshot_insert_name"`
	SnapshotGradingCompany string   `json:"snapshot_grading_company"`
	SnapshotOverall        *float64 `json:"snapshot_overall"`

	// Correlation result. HitFeedEventID is globally unique so one external
	// event can never resolve two different cards.
	HitFeedEventID *string      `json:"hit_feed_event_id" gorm:"uniqueIndex"`
	Verification   Verification `json:"verification" gorm:"index"`

	// Hit-feed payload echo, populated only for corroborated sales.
	HitRate                string   `json:"hit_rate"`
	HitFeedUsername        string   `json:"hit_feed_username"`
	HitFeedAvatarURL       string   `json:"hit_feed_avatar_url"`
	HitFeedNumber          string   `json:"hit_feed_number"`
	HitFeedTag             string   `json:"hit_feed_tag"`
	HitFeedPlayerName      string   `json:"hit_feed_player_name"`
	HitFeedSetName         string   `json:"hit_feed_set_name"`
	HitFeedSetNumber       string   `json:"hit_feed_set_number"`
	HitFeedParallelName    string   `json:"hit_feed_parallel_name"`
	HitFeedParallelNumber  string   `json:"hit_feed_parallel_number"`
	HitFeedParallelTotal   string   `json:"hit_feed_parallel_total"`
	HitFeedFrontImageURL   string   `json:"hit_feed_front_image_url"`
	HitFeedBackImageURL    string   `json:"hit_feed_back_image_url"`
	HitFeedGradingCompany  string   `json:"hit_feed_grading_company"`
	HitFeedOverall         *float64 `json:"hit_feed_overall"`
	HitFeedInsertName      string   `json:"hit_feed_insert_name"`
	HitFeedOfferStatus     string   `json:"hit_feed_offer_status"`
	HitFeedSeriesName      string   `json:"hit_feed_series_name"`
	HitFeedCategoryName    string   `json:"hit_feed_category_name"`

	SoldAt    time.Time `json:"sold_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

// SuspectedSwap is an immutable record of a card that disappeared from a
// pack without a corroborating hit-feed event inside the correlation window.
// It marks a data-integrity anomaly, not a sale, and is never reclassified
// even if a matching event shows up later.
type SuspectedSwap struct {
	ID                     string    `json:"id" gorm:"primaryKey"` // uuid
	SeriesID               string    `json:"series_id" gorm:"index;not null"`
	CardID                 string    `json:"card_id" gorm:"index;not null"`
	SnapshotTier           string    `json:"snapshot_tier"`
	SnapshotValueCents     int64     `json:"snapshot_value_cents"`
	SnapshotPlayerName     string    `json:"snapshot_player_name"`
	SnapshotSetName        string    `json:"snapshot_set_name"`
	SnapshotGradingCompany string    `json:"snapshot_grading_company"`
	SnapshotOverall        *float64  `json:"snapshot_overall"`
	DisappearedAt          time.Time `json:"disappeared_at" gorm:"index"`
	CreatedAt              time.Time `json:"created_at"`
}
