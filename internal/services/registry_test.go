package services

import (
	"context"
	"testing"
	"time"

	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/models"
)

func TestStaticPackCost(t *testing.T) {
	tests := []struct {
		category string
		want     int64
		found    bool
	}{
		{"Diamond", 100000, true},
		{"Gold", 10000, true},
		{"Misc.", 2500, true},
		{"Misc", 2500, true},
		{"Platinum", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := StaticPackCost(tt.category)
		if got != tt.want || ok != tt.found {
			t.Errorf("StaticPackCost(%q) = (%d, %v), want (%d, %v)", tt.category, got, ok, tt.want, tt.found)
		}
	}
}

type fakeCategorySource struct {
	categories []PackCategory
	err        error
}

func (f *fakeCategorySource) FetchCategories(ctx context.Context) ([]PackCategory, error) {
	return f.categories, f.err
}

func TestResolveTargets(t *testing.T) {
	source := &fakeCategorySource{
		categories: []PackCategory{
			{
				ID:   "cat-gold",
				Name: "Gold",
				Series: []SeriesRef{
					{ID: "s-gb", Name: "Baseball"},
					{ID: "s-gp", Name: "Pokemon"},
				},
			},
			{
				ID:     "cat-silver",
				Name:   "Silver",
				Series: []SeriesRef{{ID: "s-sb", Name: "Basketball"}},
			},
		},
	}
	registry := NewRegistry(source)

	targets := []config.TargetPack{
		{Category: "gold", Series: "pokemon"}, // case-insensitive
		{Category: "Silver", Series: "Basketball"},
		{Category: "Gold", Series: "Hockey"}, // not listed, skipped
	}

	resolved, err := registry.ResolveTargets(context.Background(), targets)
	if err != nil {
		t.Fatalf("ResolveTargets: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved targets, got %d", len(resolved))
	}
	if resolved[0].SeriesID != "s-gp" || resolved[1].SeriesID != "s-sb" {
		t.Errorf("wrong series ids: %s, %s", resolved[0].SeriesID, resolved[1].SeriesID)
	}
}

func TestSeriesFromInventoryStaticCostWins(t *testing.T) {
	inv := &SeriesInventory{
		SeriesID:     "s1",
		Name:         "Baseball",
		CategoryName: "Gold",
		CategoryCost: 9400, // promo price from the API, ignored
		Active:       true,
		ObservedAt:   time.Now(),
	}

	series := SeriesFromInventory(inv)

	if series.CostCents != 10000 {
		t.Errorf("static cost should win over the API price, got %d", series.CostCents)
	}
	if series.Status != models.SeriesStatusActive {
		t.Errorf("expected active status, got %s", series.Status)
	}
}

func TestSeriesFromInventoryFallsBackToAPIPrice(t *testing.T) {
	inv := &SeriesInventory{
		SeriesID:     "s1",
		Name:         "Baseball",
		CategoryName: "Platinum",
		CategoryCost: 123400,
		ObservedAt:   time.Now(),
	}

	series := SeriesFromInventory(inv)

	if series.CostCents != 123400 {
		t.Errorf("unknown category should fall back to the API price, got %d", series.CostCents)
	}
	if series.Status != models.SeriesStatusInactive {
		t.Errorf("expected inactive status, got %s", series.Status)
	}
}

func TestSeriesFromInventoryDefaultsMissingNames(t *testing.T) {
	inv := &SeriesInventory{SeriesID: "s1", ObservedAt: time.Now()}

	series := SeriesFromInventory(inv)

	if series.Name != "Unknown Name" {
		t.Errorf("expected Unknown Name, got %q", series.Name)
	}
	if series.Tier != "Unknown Category" {
		t.Errorf("expected Unknown Category, got %q", series.Tier)
	}
}
