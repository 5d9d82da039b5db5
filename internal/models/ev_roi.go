package models

import (
	"time"
)

// EVROISnapshot is a point-in-time record of a series' expected value and
// return on investment, appended once per cycle and never updated. The
// buyback fields price the marketplace's buyback guarantee: pack cost plus
// 10%, with every card value floored at 80% of the base cost.
type EVROISnapshot struct {
	ID                  uint     `json:"id" gorm:"primaryKey;autoIncrement"`
	SeriesID            string   `json:"series_id" gorm:"index;not null"`
	ExpectedValueCents  int64    `json:"expected_value_cents"`
	StaticCostCents     int64    `json:"static_cost_cents"`
	ROI                 *float64 `json:"roi"`
	NumPremiumSlots     int      `json:"num_premium_slots"`
	NumNonPremiumSlots  int      `json:"num_non_premium_slots"`
	BuybackValueCents   *int64   `json:"buyback_value_cents"`
	BuybackCostCents    *int64   `json:"buyback_cost_cents"`
	BuybackROI          *float64 `json:"buyback_roi"`

	SnapshotTime time.Time `json:"snapshot_time" gorm:"index"`

	TierContributions []TierContribution `json:"tier_contributions,omitempty" gorm:"foreignKey:SnapshotID"`
}

// TierContribution is one value tier's share of an EV/ROI snapshot. Each
// (snapshot, tier) pair appears at most once, and the contributions of all
// tiers of one snapshot sum to its expected value within rounding.
type TierContribution struct {
	ID                uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SnapshotID        uint      `json:"snapshot_id" gorm:"uniqueIndex:idx_snapshot_tier;not null"`
	TierAPIID         string    `json:"tier_api_id" gorm:"uniqueIndex:idx_snapshot_tier"`
	SeriesID          string    `json:"series_id" gorm:"index"`
	TierName          string    `json:"tier_name"`
	IsPremium         bool      `json:"is_premium"`
	HitRate           float64   `json:"hit_rate"`
	CardCount         int       `json:"card_count"`
	AvgValueCents     int64     `json:"avg_value_cents"`
	ContributionCents int64     `json:"contribution_cents"`
	SnapshotTime      time.Time `json:"snapshot_time"`
}
