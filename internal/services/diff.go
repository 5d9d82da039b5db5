package services

import (
	"errors"
	"sort"

	"github.com/un4givn/FlipForce/internal/models"
)

// ErrImplausibleEmptyInventory is returned when a series that is still
// marked active reports an empty inventory while the prior snapshot had
// cards. That pattern is a fetch fault, not a mass sale, and classifying it
// would flood the ledger with bogus sold events.
var ErrImplausibleEmptyInventory = errors.New("implausible empty inventory for active series")

// DiffResult partitions a series' card inventory between two polls.
type DiffResult struct {
	// StillPresent holds the current entries whose card id already existed
	// in the prior snapshot. Attribute changes (re-estimated value, new
	// images) do not affect membership; the row is refreshed in place.
	StillPresent []models.CardSnapshot
	// New holds current entries never seen in the prior snapshot.
	New []models.CardSnapshot
	// Missing holds the prior entries absent from the current inventory,
	// carrying their last-known state. Classification as sold vs swapped is
	// the correlator's job, never the diff's.
	Missing []models.CardSnapshot
}

// DiffSnapshots computes the set difference between the previously committed
// snapshot and the currently observed inventory of one series, keyed by card
// id. Both inputs are treated as immutable; the result slices are sorted by
// card id so downstream processing is deterministic.
func DiffSnapshots(previous, current []models.CardSnapshot, active bool) (*DiffResult, error) {
	if len(current) == 0 && len(previous) > 0 && active {
		return nil, ErrImplausibleEmptyInventory
	}

	prevByID := make(map[string]models.CardSnapshot, len(previous))
	for _, card := range previous {
		prevByID[card.CardID] = card
	}

	result := &DiffResult{}
	currentIDs := make(map[string]bool, len(current))
	for _, card := range current {
		currentIDs[card.CardID] = true
		if _, ok := prevByID[card.CardID]; ok {
			result.StillPresent = append(result.StillPresent, card)
		} else {
			result.New = append(result.New, card)
		}
	}

	for _, card := range previous {
		if !currentIDs[card.CardID] {
			result.Missing = append(result.Missing, card)
		}
	}

	sortByCardID(result.StillPresent)
	sortByCardID(result.New)
	sortByCardID(result.Missing)

	return result, nil
}

func sortByCardID(cards []models.CardSnapshot) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].CardID < cards[j].CardID
	})
}
