package services

import (
	"math"
	"time"

	"github.com/un4givn/FlipForce/internal/models"
)

// buybackCostMultiplier and buybackFloorMultiplier price the marketplace's
// buyback guarantee: packs cost 10% more, and any pulled card can be sold
// back for 80% of the base pack cost.
const (
	buybackCostMultiplier  = 1.10
	buybackFloorMultiplier = 0.80
)

// EVROIResult is one cycle's complete expected-value computation: the
// snapshot row and one contribution row per tier. It is persisted whole or
// not at all.
type EVROIResult struct {
	Snapshot      models.EVROISnapshot
	Contributions []models.TierContribution
}

// ComputeEVROI aggregates the current inventory of one series into an
// EV/ROI snapshot. Per tier: hit_rate = cards_in_tier / total_cards,
// avg_value = mean estimated value, contribution = avg_value * hit_rate
// scaled by the tier's premium or non-premium slot count. The snapshot's
// expected value is the exact sum of the rounded per-tier contributions, so
// the two always reconcile. A tier with no remaining cards contributes
// zeros. ROI is nil when the series has no positive static cost.
func ComputeEVROI(seriesID string, tiers []TierInventory, premiumSlots, nonPremiumSlots int, staticCostCents int64, now time.Time) *EVROIResult {
	// Series payloads that predate slot counts report zero for both; a
	// pack still yields one card per slot class.
	if premiumSlots == 0 && nonPremiumSlots == 0 {
		premiumSlots, nonPremiumSlots = 1, 1
	}

	totalCards := 0
	for _, tier := range tiers {
		totalCards += len(tier.Cards)
	}

	var expectedValueCents int64
	var buybackValueCents int64

	buybackFloor := math.Round(float64(staticCostCents) * buybackFloorMultiplier)

	contributions := make([]models.TierContribution, 0, len(tiers))
	for _, tier := range tiers {
		count := len(tier.Cards)

		var hitRate, avgValue, avgBuyback float64
		if count > 0 && totalCards > 0 {
			hitRate = float64(count) / float64(totalCards)

			var sum, sumBuyback float64
			for _, card := range tier.Cards {
				v := float64(card.EstimatedValueCents)
				sum += v
				sumBuyback += math.Max(v, buybackFloor)
			}
			avgValue = sum / float64(count)
			avgBuyback = sumBuyback / float64(count)
		}

		slots := nonPremiumSlots
		if tier.IsPremium {
			slots = premiumSlots
		}

		contributionCents := int64(math.Round(avgValue * hitRate * float64(slots)))
		expectedValueCents += contributionCents
		buybackValueCents += int64(math.Round(avgBuyback * hitRate * float64(slots)))

		contributions = append(contributions, models.TierContribution{
			TierAPIID:         tier.APIID,
			SeriesID:          seriesID,
			TierName:          tier.Name,
			IsPremium:         tier.IsPremium,
			HitRate:           hitRate,
			CardCount:         count,
			AvgValueCents:     int64(math.Round(avgValue)),
			ContributionCents: contributionCents,
			SnapshotTime:      now,
		})
	}

	snapshot := models.EVROISnapshot{
		SeriesID:           seriesID,
		ExpectedValueCents: expectedValueCents,
		StaticCostCents:    staticCostCents,
		NumPremiumSlots:    premiumSlots,
		NumNonPremiumSlots: nonPremiumSlots,
		SnapshotTime:       now,
	}

	if staticCostCents > 0 {
		roi := float64(expectedValueCents)/float64(staticCostCents) - 1.0
		snapshot.ROI = &roi

		buybackCost := int64(math.Round(float64(staticCostCents) * buybackCostMultiplier))
		buybackROI := float64(buybackValueCents)/float64(buybackCost) - 1.0
		snapshot.BuybackValueCents = &buybackValueCents
		snapshot.BuybackCostCents = &buybackCost
		snapshot.BuybackROI = &buybackROI
	}

	return &EVROIResult{
		Snapshot:      snapshot,
		Contributions: contributions,
	}
}
