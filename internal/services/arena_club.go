package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/metrics"
	"github.com/un4givn/FlipForce/internal/models"
)

const arenaClubDefaultBaseURL = "https://api.arenaclub.com/v2"

// ArenaClubClient fetches pack categories, series inventories, and the card
// hit feed from the Arena Club API. Requests are paced with a token bucket
// and counted against a daily budget so a misbehaving cycle cannot hammer
// the marketplace.
type ArenaClubClient struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter

	dailyLimit int

	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

// NewArenaClubClient creates a marketplace client from configuration.
func NewArenaClubClient(cfg config.ArenaClubConfig) *ArenaClubClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = arenaClubDefaultBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	timeout := cfg.RequestTimeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ArenaClubClient{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		dailyLimit: cfg.DailyLimit,
	}
}

// checkDailyLimit counts a request against today's budget. Returns false
// when the budget is exhausted.
func (c *ArenaClubClient) checkDailyLimit() bool {
	if c.dailyLimit <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if c.lastRequestDay.Before(today) {
		c.requestsToday = 0
		c.lastRequestDay = today
	}

	if c.requestsToday >= c.dailyLimit {
		return false
	}
	c.requestsToday++
	return true
}

// RequestsRemaining returns the number of requests left in today's budget.
func (c *ArenaClubClient) RequestsRemaining() int {
	if c.dailyLimit <= 0 {
		return -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if c.lastRequestDay.Before(today) {
		return c.dailyLimit
	}
	remaining := c.dailyLimit - c.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *ArenaClubClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if !c.checkDailyLimit() {
		metrics.ArenaClubRequestsThrottled.Inc()
		return fmt.Errorf("arena club: daily request limit reached")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	// The API refuses requests that do not look like they come from the
	// web storefront.
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://arenaclub.com")
	req.Header.Set("Referer", "https://arenaclub.com/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36")

	metrics.ArenaClubRequestsTotal.Inc()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("arena club request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arena club returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("arena club response decode failed: %w", err)
	}
	return nil
}

// Raw payload types, shaped exactly like the Arena Club JSON.

// flexFloat decodes a JSON number or numeric string into a float. The API
// is inconsistent about which one it sends for grades and hit rates.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil // tolerate garbage, treat as absent
	}
	f.Value = v
	f.Valid = true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// flexString decodes a JSON string or number into a string. Parallel
// numbering comes back as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}

type arenaCategoriesResponse struct {
	Items []arenaCategory `json:"items"`
}

type arenaCategory struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	SlabPackSeries []arenaSeriesRef `json:"slabPackSeries"`
}

type arenaSeriesRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type arenaSeriesDetail struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsActive         bool   `json:"isActive"`
	PacksSold        int    `json:"packsSold"`
	PacksTotal       int    `json:"packsTotal"`
	CostCents        int64  `json:"costCents"`
	Tier             string `json:"tier"`
	SlabPackCategory *struct {
		Name       string `json:"name"`
		PriceCents int64  `json:"priceCents"`
	} `json:"slabPackCategory"`
	NumPremiumCardsPerPack    int         `json:"numPremiumCardsPerPack"`
	NumNonPremiumCardsPerPack int         `json:"numNonPremiumCardsPerPack"`
	SlabPackTiers             []arenaTier `json:"slabPackTiers"`
}

type arenaTier struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPremium bool   `json:"isPremium"`
	// HitRate is decoded but deliberately ignored. The API's figure lags
	// the live inventory; hit rates are derived from current card counts
	// instead.
	HitRate flexFloat   `json:"hitRate"`
	Cards   []arenaCard `json:"cards"`
}

type arenaCard struct {
	ID                  string     `json:"id"`
	PlayerName          string     `json:"playerName"`
	Overall             flexFloat  `json:"overall"`
	Insert              string     `json:"insert"`
	SetNumber           flexString `json:"setNumber"`
	SetName             string     `json:"setName"`
	Holo                flexString `json:"holo"`
	Rarity              string     `json:"rarity"`
	ParallelNumber      flexString `json:"parallelNumber"`
	ParallelTotal       flexString `json:"parallelTotal"`
	ParallelName        string     `json:"parallelName"`
	FrontSlabPictureURL string     `json:"frontSlabPictureUrl"`
	BackSlabPictureURL  string     `json:"backSlabPictureUrl"`
	SlabKind            string     `json:"slabKind"`
	GradingCompany      string     `json:"gradingCompany"`
	EstimatedValueCents int64      `json:"estimatedValueCents"`
}

type arenaHitFeedResponse struct {
	Items []arenaHitFeedItem `json:"items"`
}

type arenaHitFeedItem struct {
	ID                   string     `json:"id"`
	CardID               string     `json:"cardId"`
	CreatedAt            string     `json:"createdAt"`
	HitRate              flexString `json:"hitRate"`
	Username             string     `json:"username"`
	AvatarURL            string     `json:"avatarUrl"`
	Number               flexString `json:"number"`
	Tag                  string     `json:"tag"`
	PlayerName           string     `json:"playerName"`
	SetName              string     `json:"setName"`
	SetNumber            flexString `json:"setNumber"`
	ParallelName         string     `json:"parallelName"`
	ParallelNumber       flexString `json:"parallelNumber"`
	ParallelTotal        flexString `json:"parallelTotal"`
	FrontSlabPictureURL  string     `json:"frontSlabPictureUrl"`
	BackSlabPictureURL   string     `json:"backSlabPictureUrl"`
	GradingCompany       string     `json:"gradingCompany"`
	Overall              flexFloat  `json:"overall"`
	Insert               string     `json:"insert"`
	ArenaClubOfferStatus string     `json:"arenaClubOfferStatus"`
	SlabPackSeriesName   string     `json:"slabPackSeriesName"`
	SlabPackCategoryName string     `json:"slabPackCategoryName"`
}

// Normalized types returned to callers.

// PackCategory is a marketplace pack category with its series listing.
type PackCategory struct {
	ID     string
	Name   string
	Series []SeriesRef
}

// SeriesRef names one series inside a category listing.
type SeriesRef struct {
	ID   string
	Name string
}

// TierInventory is one value tier of a series inventory with its cards
// already normalized into snapshot entries.
type TierInventory struct {
	APIID     string
	Name      string
	IsPremium bool
	Cards     []models.CardSnapshot
}

// SeriesInventory is a fully normalized observation of one series: metadata,
// raw counters, and the per-tier card inventory. This is the only shape the
// diff and aggregation logic ever sees.
type SeriesInventory struct {
	SeriesID        string
	Name            string
	CategoryName    string
	CategoryCost    int64 // API-reported category price, fallback for cost resolution
	Active          bool
	PacksSold       int
	PacksTotal      int
	PremiumSlots    int
	NonPremiumSlots int
	Tiers           []TierInventory
	ObservedAt      time.Time
}

// Cards returns every card of the inventory across all tiers.
func (inv *SeriesInventory) Cards() []models.CardSnapshot {
	var out []models.CardSnapshot
	for _, tier := range inv.Tiers {
		out = append(out, tier.Cards...)
	}
	return out
}

// TotalValueCents sums the estimated value of all cards still in the pack.
func (inv *SeriesInventory) TotalValueCents() int64 {
	var sum int64
	for _, tier := range inv.Tiers {
		for _, card := range tier.Cards {
			sum += card.EstimatedValueCents
		}
	}
	return sum
}

// HitFeedEvent is a normalized confirmed-opening event from the hit feed.
type HitFeedEvent struct {
	ID             string
	CardID         string
	PlayerName     string
	SetName        string
	SetNumber      string
	ParallelName   string
	ParallelNumber string
	ParallelTotal  string
	GradingCompany string
	Overall        *float64
	HitRate        string
	Username       string
	AvatarURL      string
	Number         string
	Tag            string
	InsertName     string
	OfferStatus    string
	SeriesName     string
	CategoryName   string
	FrontImageURL  string
	BackImageURL   string
	CreatedAt      time.Time
}

// FetchCategories retrieves the pack category overview used to resolve
// configured targets to series ids.
func (c *ArenaClubClient) FetchCategories(ctx context.Context) ([]PackCategory, error) {
	var resp arenaCategoriesResponse
	if err := c.get(ctx, "/slab-pack-categories", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]PackCategory, 0, len(resp.Items))
	for _, cat := range resp.Items {
		pc := PackCategory{ID: cat.ID, Name: cat.Name}
		for _, s := range cat.SlabPackSeries {
			if s.ID == "" {
				continue
			}
			pc.Series = append(pc.Series, SeriesRef{ID: s.ID, Name: s.Name})
		}
		out = append(out, pc)
	}
	return out, nil
}

// FetchSeriesInventory retrieves one series' detail and normalizes it.
// Card entries without an id are rejected at this boundary so nothing
// downstream has to handle half-formed records.
func (c *ArenaClubClient) FetchSeriesInventory(ctx context.Context, seriesID string) (*SeriesInventory, error) {
	var detail arenaSeriesDetail
	if err := c.get(ctx, "/slab-pack-series/"+url.PathEscape(seriesID), nil, &detail); err != nil {
		return nil, err
	}
	if detail.ID == "" {
		return nil, fmt.Errorf("arena club returned series detail without an id for %s", seriesID)
	}

	now := time.Now().UTC()
	inv := &SeriesInventory{
		SeriesID:        detail.ID,
		Name:            detail.Name,
		Active:          detail.IsActive,
		PacksSold:       detail.PacksSold,
		PacksTotal:      detail.PacksTotal,
		PremiumSlots:    detail.NumPremiumCardsPerPack,
		NonPremiumSlots: detail.NumNonPremiumCardsPerPack,
		ObservedAt:      now,
	}

	if detail.SlabPackCategory != nil {
		inv.CategoryName = detail.SlabPackCategory.Name
		inv.CategoryCost = detail.SlabPackCategory.PriceCents
	} else if detail.Tier != "" {
		inv.CategoryName = detail.Tier
	}
	if inv.CategoryCost == 0 {
		inv.CategoryCost = detail.CostCents
	}

	rejected := 0
	for _, tier := range detail.SlabPackTiers {
		ti := TierInventory{
			APIID:     tier.ID,
			Name:      tier.Name,
			IsPremium: tier.IsPremium,
		}
		if ti.Name == "" {
			ti.Name = "Unknown Tier"
		}
		for _, card := range tier.Cards {
			if card.ID == "" {
				rejected++
				continue
			}
			ti.Cards = append(ti.Cards, models.CardSnapshot{
				SeriesID:            detail.ID,
				CardID:              card.ID,
				Tier:                ti.Name,
				PlayerName:          card.PlayerName,
				Overall:             card.Overall.ptr(),
				InsertName:          card.Insert,
				SetNumber:           string(card.SetNumber),
				SetName:             card.SetName,
				Holo:                string(card.Holo),
				Rarity:              card.Rarity,
				ParallelNumber:      string(card.ParallelNumber),
				ParallelTotal:       string(card.ParallelTotal),
				ParallelName:        card.ParallelName,
				FrontImageURL:       card.FrontSlabPictureURL,
				BackImageURL:        card.BackSlabPictureURL,
				SlabKind:            card.SlabKind,
				GradingCompany:      card.GradingCompany,
				EstimatedValueCents: card.EstimatedValueCents,
				SnapshotTime:        now,
			})
		}
		inv.Tiers = append(inv.Tiers, ti)
	}

	if rejected > 0 {
		log.Printf("Arena Club: rejected %d card entries without ids for series %s", rejected, detail.ID)
		metrics.ArenaClubRejectedRecords.Add(float64(rejected))
	}

	return inv, nil
}

// FetchHitFeed retrieves one page of the card hit feed, newest first, and
// normalizes it. Items missing an id or a parseable timestamp are dropped.
func (c *ArenaClubClient) FetchHitFeed(ctx context.Context, limit, offset int) ([]HitFeedEvent, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("category", "all")

	var resp arenaHitFeedResponse
	if err := c.get(ctx, "/card-hit-feed", params, &resp); err != nil {
		return nil, err
	}

	events := make([]HitFeedEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID == "" {
			metrics.ArenaClubRejectedRecords.Inc()
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
		if err != nil {
			log.Printf("Arena Club: hit %s has unparseable createdAt %q, dropping", item.ID, item.CreatedAt)
			metrics.ArenaClubRejectedRecords.Inc()
			continue
		}
		events = append(events, HitFeedEvent{
			ID:             item.ID,
			CardID:         item.CardID,
			PlayerName:     item.PlayerName,
			SetName:        item.SetName,
			SetNumber:      string(item.SetNumber),
			ParallelName:   item.ParallelName,
			ParallelNumber: string(item.ParallelNumber),
			ParallelTotal:  string(item.ParallelTotal),
			GradingCompany: item.GradingCompany,
			Overall:        item.Overall.ptr(),
			HitRate:        string(item.HitRate),
			Username:       item.Username,
			AvatarURL:      item.AvatarURL,
			Number:         string(item.Number),
			Tag:            item.Tag,
			InsertName:     item.Insert,
			OfferStatus:    item.ArenaClubOfferStatus,
			SeriesName:     item.SlabPackSeriesName,
			CategoryName:   item.SlabPackCategoryName,
			FrontImageURL:  item.FrontSlabPictureURL,
			BackImageURL:   item.BackSlabPictureURL,
			CreatedAt:      createdAt.UTC(),
		})
	}
	return events, nil
}
