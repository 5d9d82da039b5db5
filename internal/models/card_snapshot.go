package models

import (
	"time"
)

// CardSnapshot is one card observed present in a series' pack at the last
// committed poll. The table always reflects the most recent committed
// inventory: rows for cards still present are upserted in place, rows for
// cards that disappeared are removed only after their last-known state has
// been copied into a sold or swap-suspect record.
type CardSnapshot struct {
	SeriesID            string    `json:"series_id" gorm:"primaryKey"`
	CardID              string    `json:"card_id" gorm:"primaryKey"`
	Tier                string    `json:"tier" gorm:"index"`
	PlayerName          string    `json:"player_name"`
	Overall             *float64  `json:"overall"` // numeric grade, e.g. 9.5
	InsertName          string    `json:"insert_name"`
	SetNumber           string    `json:"set_number"`
	SetName             string    `json:"set_name"`
	Holo                string    `json:"holo"`
	Rarity              string    `json:"rarity"`
	ParallelNumber      string    `json:"parallel_number"`
	ParallelTotal       string    `json:"parallel_total"`
	ParallelName        string    `json:"parallel_name"`
	FrontImageURL       string    `json:"front_image_url"`
	BackImageURL        string    `json:"back_image_url"`
	SlabKind            string    `json:"slab_kind"`
	GradingCompany      string    `json:"grading_company"`
	EstimatedValueCents int64     `json:"estimated_value_cents"`
	SnapshotTime        time.Time `json:"snapshot_time"`
}

// PackSnapshot is the append-only log of raw sold/total counters as reported
// by the marketplace, one row per poll. Decreases are recorded verbatim;
// PackMaxSold carries the monotonic view.
type PackSnapshot struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SeriesID     string    `json:"series_id" gorm:"index;not null"`
	PacksSold    int       `json:"packs_sold"`
	PacksTotal   int       `json:"packs_total"`
	SnapshotTime time.Time `json:"snapshot_time"`
}

// PackMaxSold is the non-decreasing high-water mark of packs sold per series.
type PackMaxSold struct {
	SeriesID    string    `json:"series_id" gorm:"primaryKey"`
	MaxSold     int       `json:"max_sold"`
	LastUpdated time.Time `json:"last_updated"`
}

// PackValueSnapshot records the summed estimated value of all cards still in
// the pack at one poll.
type PackValueSnapshot struct {
	ID                       uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SeriesID                 string    `json:"series_id" gorm:"index;not null"`
	TotalEstimatedValueCents int64     `json:"total_estimated_value_cents"`
	SnapshotTime             time.Time `json:"snapshot_time"`
}

// PackSalesTally accumulates confirmed sold-card counts per series.
type PackSalesTally struct {
	SeriesID    string    `json:"series_id" gorm:"primaryKey"`
	TotalSold   int       `json:"total_sold"`
	LastChecked time.Time `json:"last_checked"`
}
