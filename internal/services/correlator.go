package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/un4givn/FlipForce/internal/models"
)

// consumedCacheSize bounds the in-memory cache of recently consumed hit-feed
// event ids that fronts the database uniqueness check.
const consumedCacheSize = 4096

// Fingerprint is the derived key used to match a snapshot card entry to a
// hit-feed event describing the same physical card. The fields are the ones
// stable and present in both payloads even though the two sources name them
// differently.
type Fingerprint struct {
	PlayerName     string
	SetName        string
	SetNumber      string
	ParallelName   string
	ParallelNumber string
	GradingCompany string
	Overall        string
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeOverall(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// SnapshotFingerprint derives the matching key from a card snapshot entry.
func SnapshotFingerprint(card models.CardSnapshot) Fingerprint {
	return Fingerprint{
		PlayerName:     normalizeField(card.PlayerName),
		SetName:        normalizeField(card.SetName),
		SetNumber:      normalizeField(card.SetNumber),
		ParallelName:   normalizeField(card.ParallelName),
		ParallelNumber: normalizeField(card.ParallelNumber),
		GradingCompany: normalizeField(card.GradingCompany),
		Overall:        normalizeOverall(card.Overall),
	}
}

// EventFingerprint derives the matching key from a hit-feed event.
func EventFingerprint(ev HitFeedEvent) Fingerprint {
	return Fingerprint{
		PlayerName:     normalizeField(ev.PlayerName),
		SetName:        normalizeField(ev.SetName),
		SetNumber:      normalizeField(ev.SetNumber),
		ParallelName:   normalizeField(ev.ParallelName),
		ParallelNumber: normalizeField(ev.ParallelNumber),
		GradingCompany: normalizeField(ev.GradingCompany),
		Overall:        normalizeOverall(ev.Overall),
	}
}

// Correlator matches missing-card candidates from the diff engine against
// hit-feed events and classifies each disappearance as a sold event or a
// suspected swap.
type Correlator struct {
	window      time.Duration
	verifyTiers map[string]bool // empty: every tier requires corroboration

	// consumed caches hit-feed event ids already bound to a sold event in
	// recently committed cycles. The sold_card_events unique index is the
	// source of truth; this just avoids re-reading it for hot ids.
	consumed *lru.Cache[string, time.Time]
}

// NewCorrelator creates a correlator with the given matching window. Tiers
// listed in verifyTiers require a hit-feed match before a disappearance may
// be classified sold; with an empty list every tier does.
func NewCorrelator(window time.Duration, verifyTiers []string) (*Correlator, error) {
	cache, err := lru.New[string, time.Time](consumedCacheSize)
	if err != nil {
		return nil, err
	}

	tiers := make(map[string]bool, len(verifyTiers))
	for _, t := range verifyTiers {
		tiers[normalizeField(t)] = true
	}

	return &Correlator{
		window:      window,
		verifyTiers: tiers,
		consumed:    cache,
	}, nil
}

// CorrelationResult is the classification of one cycle's missing cards.
type CorrelationResult struct {
	Sold  []models.SoldCardEvent
	Swaps []models.SuspectedSwap
	// ConsumedEventIDs lists the hit-feed events bound to sold events in
	// this result. The caller marks them consumed only after the cycle
	// commits, so an aborted cycle leaves them available for retry.
	ConsumedEventIDs []string
	// CheckedThrough is the latest event timestamp considered; the
	// orchestrator advances the series' hit-feed watermark to it on commit.
	// Zero when no events were considered.
	CheckedThrough time.Time
}

// requiresVerification reports whether a card of the given tier must be
// corroborated on the hit feed before being classified sold.
func (c *Correlator) requiresVerification(tier string) bool {
	if len(c.verifyTiers) == 0 {
		return true
	}
	return c.verifyTiers[normalizeField(tier)]
}

// matches reports whether the event plausibly describes the card: either the
// marketplace card id lines up directly, or the fingerprints agree. A
// fingerprint with no player name is too weak to match on.
func matches(card models.CardSnapshot, ev HitFeedEvent) bool {
	if ev.CardID != "" && ev.CardID == card.CardID {
		return true
	}
	fp := SnapshotFingerprint(card)
	if fp.PlayerName == "" {
		return false
	}
	return fp == EventFingerprint(ev)
}

// Correlate classifies each missing card against the supplied hit-feed
// events. Events are expected to be pre-filtered to the series' look-back
// window (after last_successful_hit_feed_check and not yet persisted as
// consumed). Every missing card lands in exactly one of Sold or Swaps.
//
// Candidate events must fall inside [lastSeen, lastSeen+window] for the
// card. One match: verified sale. No match: suspected swap for verified
// tiers, default-classified sale otherwise. Multiple matches: the event
// nearest in time to the card's last-seen wins, flagged ambiguous; the
// losers stay unconsumed.
func (c *Correlator) Correlate(missing []models.CardSnapshot, events []HitFeedEvent, now time.Time) CorrelationResult {
	var result CorrelationResult

	for _, ev := range events {
		if ev.CreatedAt.After(result.CheckedThrough) {
			result.CheckedThrough = ev.CreatedAt
		}
	}

	consumedRun := make(map[string]bool)

	for _, card := range missing {
		var candidates []HitFeedEvent
		for _, ev := range events {
			if consumedRun[ev.ID] || c.consumed.Contains(ev.ID) {
				continue
			}
			if ev.CreatedAt.Before(card.SnapshotTime) || ev.CreatedAt.Sub(card.SnapshotTime) > c.window {
				continue
			}
			if matches(card, ev) {
				candidates = append(candidates, ev)
			}
		}

		switch {
		case len(candidates) == 1:
			ev := candidates[0]
			consumedRun[ev.ID] = true
			result.ConsumedEventIDs = append(result.ConsumedEventIDs, ev.ID)
			result.Sold = append(result.Sold, newSoldEvent(card, &ev, models.VerificationHitFeed))

		case len(candidates) > 1:
			ev := nearestEvent(candidates, card.SnapshotTime)
			consumedRun[ev.ID] = true
			result.ConsumedEventIDs = append(result.ConsumedEventIDs, ev.ID)
			result.Sold = append(result.Sold, newSoldEvent(card, &ev, models.VerificationAmbiguous))

		default:
			if c.requiresVerification(card.Tier) {
				result.Swaps = append(result.Swaps, models.SuspectedSwap{
					ID:                     uuid.New().String(),
					SeriesID:               card.SeriesID,
					CardID:                 card.CardID,
					SnapshotTier:           card.Tier,
					SnapshotValueCents:     card.EstimatedValueCents,
					SnapshotPlayerName:     card.PlayerName,
					SnapshotSetName:        card.SetName,
					SnapshotGradingCompany: card.GradingCompany,
					SnapshotOverall:        card.Overall,
					DisappearedAt:          now,
				})
			} else {
				sold := newSoldEvent(card, nil, models.VerificationDefault)
				sold.SoldAt = now
				result.Sold = append(result.Sold, sold)
			}
		}
	}

	return result
}

// MarkConsumed records hit-feed event ids as bound to committed sold events.
// Called by the orchestrator after a successful cycle commit.
func (c *Correlator) MarkConsumed(eventIDs []string, at time.Time) {
	for _, id := range eventIDs {
		c.consumed.Add(id, at)
	}
}

// IsConsumed reports whether the correlator has seen the event id consumed
// in a recently committed cycle.
func (c *Correlator) IsConsumed(eventID string) bool {
	return c.consumed.Contains(eventID)
}

// nearestEvent breaks a multi-candidate tie deterministically: smallest gap
// to lastSeen wins, then the lexicographically smaller event id.
func nearestEvent(candidates []HitFeedEvent, lastSeen time.Time) HitFeedEvent {
	best := candidates[0]
	bestGap := best.CreatedAt.Sub(lastSeen)
	for _, ev := range candidates[1:] {
		gap := ev.CreatedAt.Sub(lastSeen)
		if gap < bestGap || (gap == bestGap && ev.ID < best.ID) {
			best = ev
			bestGap = gap
		}
	}
	return best
}

func newSoldEvent(card models.CardSnapshot, ev *HitFeedEvent, verification models.Verification) models.SoldCardEvent {
	sold := models.SoldCardEvent{
		SeriesID:               card.SeriesID,
		CardID:                 card.CardID,
		SnapshotTier:           card.Tier,
		SnapshotValueCents:     card.EstimatedValueCents,
		SnapshotPlayerName:     card.PlayerName,
		SnapshotSetName:        card.SetName,
		SnapshotInsertName:     card.InsertName,
		SnapshotGradingCompany: card.GradingCompany,
		SnapshotOverall:        card.Overall,
		Verification:           verification,
	}

	if ev != nil {
		id := ev.ID
		sold.HitFeedEventID = &id
		sold.SoldAt = ev.CreatedAt
		sold.HitRate = ev.HitRate
		sold.HitFeedUsername = ev.Username
		sold.HitFeedAvatarURL = ev.AvatarURL
		sold.HitFeedNumber = ev.Number
		sold.HitFeedTag = ev.Tag
		sold.HitFeedPlayerName = ev.PlayerName
		sold.HitFeedSetName = ev.SetName
		sold.HitFeedSetNumber = ev.SetNumber
		sold.HitFeedParallelName = ev.ParallelName
		sold.HitFeedParallelNumber = ev.ParallelNumber
		sold.HitFeedParallelTotal = ev.ParallelTotal
		sold.HitFeedFrontImageURL = ev.FrontImageURL
		sold.HitFeedBackImageURL = ev.BackImageURL
		sold.HitFeedGradingCompany = ev.GradingCompany
		sold.HitFeedOverall = ev.Overall
		sold.HitFeedInsertName = ev.InsertName
		sold.HitFeedOfferStatus = ev.OfferStatus
		sold.HitFeedSeriesName = ev.SeriesName
		sold.HitFeedCategoryName = ev.CategoryName
	}

	return sold
}
