package services

import (
	"context"
	"log"
	"strings"

	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/models"
)

// staticPackCostsCents maps pack categories to their fixed purchase price.
// The marketplace reports a price too, but it drifts with promotions; ROI is
// always computed against the static cost.
var staticPackCostsCents = map[string]int64{
	"Diamond": 100000,
	"Emerald": 50000,
	"Ruby":    25000,
	"Gold":    10000,
	"Silver":  5000,
	"Misc.":   2500,
	"Misc":    2500,
}

// StaticPackCost looks up the fixed cost for a pack category. The
// marketplace is inconsistent about the trailing dot on "Misc.", so both
// spellings are tried.
func StaticPackCost(category string) (int64, bool) {
	if category == "" {
		return 0, false
	}
	if cost, ok := staticPackCostsCents[category]; ok {
		return cost, true
	}
	if strings.HasSuffix(category, ".") {
		if cost, ok := staticPackCostsCents[strings.TrimSuffix(category, ".")]; ok {
			return cost, true
		}
	} else if cost, ok := staticPackCostsCents[category+"."]; ok {
		return cost, true
	}
	return 0, false
}

// CategorySource lists pack categories with their series. Satisfied by
// ArenaClubClient.
type CategorySource interface {
	FetchCategories(ctx context.Context) ([]PackCategory, error)
}

// ResolvedTarget is a configured target pack resolved to a series id.
type ResolvedTarget struct {
	SeriesID   string
	Category   string
	SeriesName string
}

// Registry resolves the configured (category, series) targets against the
// marketplace's category listing each cycle, since series ids rotate when
// the marketplace restocks a product line.
type Registry struct {
	source CategorySource
}

func NewRegistry(source CategorySource) *Registry {
	return &Registry{source: source}
}

// ResolveTargets maps each configured target to its current series id.
// Targets that cannot be found in the listing are logged and skipped; the
// rest of the cycle proceeds.
func (r *Registry) ResolveTargets(ctx context.Context, targets []config.TargetPack) ([]ResolvedTarget, error) {
	categories, err := r.source.FetchCategories(ctx)
	if err != nil {
		return nil, err
	}

	var resolved []ResolvedTarget
	for _, target := range targets {
		id := findSeriesID(categories, target.Category, target.Series)
		if id == "" {
			log.Printf("Registry: no series found for target %s - %s", target.Category, target.Series)
			continue
		}
		resolved = append(resolved, ResolvedTarget{
			SeriesID:   id,
			Category:   target.Category,
			SeriesName: target.Series,
		})
	}
	return resolved, nil
}

func findSeriesID(categories []PackCategory, categoryName, seriesName string) string {
	for _, cat := range categories {
		if !strings.EqualFold(cat.Name, categoryName) {
			continue
		}
		for _, s := range cat.Series {
			if strings.EqualFold(s.Name, seriesName) {
				return s.ID
			}
		}
	}
	return ""
}

// SeriesFromInventory builds the registry metadata row for an observed
// inventory. The static cost table wins over the API-reported price; the
// API price is only a fallback for categories the table does not know.
func SeriesFromInventory(inv *SeriesInventory) models.PackSeries {
	cost, ok := StaticPackCost(inv.CategoryName)
	if !ok {
		cost = inv.CategoryCost
	}

	status := models.SeriesStatusInactive
	if inv.Active {
		status = models.SeriesStatusActive
	}

	name := inv.Name
	if name == "" {
		name = "Unknown Name"
	}
	category := inv.CategoryName
	if category == "" {
		category = "Unknown Category"
	}

	return models.PackSeries{
		ID:        inv.SeriesID,
		Name:      name,
		Tier:      category,
		CostCents: cost,
		Status:    status,
		LastSeen:  inv.ObservedAt,
	}
}
