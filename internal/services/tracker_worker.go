package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/metrics"
)

// SeriesStatus is the per-series view exposed by the worker status endpoint.
type SeriesStatus struct {
	SeriesID     string       `json:"series_id"`
	Name         string       `json:"name"`
	LastResult   *CycleResult `json:"last_result,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	ConsecErrors int          `json:"consecutive_errors"`
	NextAttempt  time.Time    `json:"next_attempt"`
}

// TrackerStatus is the worker-level status exposed by the API.
type TrackerStatus struct {
	LastSweepTime time.Time      `json:"last_sweep_time"`
	NextSweepTime time.Time      `json:"next_sweep_time"`
	CyclesToday   int            `json:"cycles_today"`
	Series        []SeriesStatus `json:"series"`
}

type seriesState struct {
	name         string
	lastResult   *CycleResult
	lastError    string
	consecErrors int
	backoff      time.Duration
	nextAttempt  time.Time
	inFlight     bool
}

// TrackerWorker runs reconciliation sweeps over the configured target packs
// on a fixed interval. Each sweep resolves targets against the live category
// listing, then runs bounded-concurrency cycles with per-series exponential
// backoff after failures.
type TrackerWorker struct {
	tracker  *Tracker
	registry *Registry
	targets  []config.TargetPack

	pollInterval   time.Duration
	maxConcurrent  int
	backoffInitial time.Duration
	backoffMax     time.Duration

	mu sync.RWMutex

	series map[string]*seriesState

	// Stats (reset at midnight)
	cyclesToday   int
	lastSweepTime time.Time
	lastStatsDay  time.Time
}

func NewTrackerWorker(tracker *Tracker, registry *Registry, cfg config.TrackerConfig, targets []config.TargetPack) *TrackerWorker {
	return &TrackerWorker{
		tracker:        tracker,
		registry:       registry,
		targets:        targets,
		pollInterval:   cfg.PollInterval.Duration,
		maxConcurrent:  cfg.MaxConcurrent,
		backoffInitial: cfg.BackoffInitial.Duration,
		backoffMax:     cfg.BackoffMax.Duration,
		series:         make(map[string]*seriesState),
	}
}

// Start begins the background reconciliation worker. It runs a sweep
// immediately, then once per poll interval until the context is cancelled.
func (w *TrackerWorker) Start(ctx context.Context) {
	log.Printf("Tracker worker started: sweeping %d target packs every %v", len(w.targets), w.pollInterval)

	w.runSweep(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker worker stopping...")
			return
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

// runSweep resolves the configured targets and runs one cycle per eligible
// series. A series in backoff or already in flight is skipped this sweep.
func (w *TrackerWorker) runSweep(ctx context.Context) {
	w.resetDailyStatsIfNeeded()

	resolved, err := w.registry.ResolveTargets(ctx, w.targets)
	if err != nil {
		log.Printf("Tracker worker: target resolution failed: %v", err)
		return
	}
	if len(resolved) == 0 {
		log.Println("Tracker worker: no targets resolved, nothing to sweep")
		return
	}

	now := time.Now()
	var due []ResolvedTarget
	w.mu.Lock()
	for _, target := range resolved {
		state, ok := w.series[target.SeriesID]
		if !ok {
			state = &seriesState{}
			w.series[target.SeriesID] = state
		}
		state.name = target.SeriesName
		if state.inFlight || now.Before(state.nextAttempt) {
			continue
		}
		state.inFlight = true
		due = append(due, target)
	}
	w.lastSweepTime = now
	w.mu.Unlock()

	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrent)
	for _, target := range due {
		target := target
		g.Go(func() error {
			w.runSeriesCycle(gctx, target.SeriesID)
			return nil
		})
	}
	g.Wait()
}

// runSeriesCycle runs one guarded cycle for a series and records the outcome.
// A panic inside a cycle is contained to that series.
func (w *TrackerWorker) runSeriesCycle(ctx context.Context, seriesID string) {
	var result *CycleResult
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cycle panicked: %v", r)
				metrics.CyclesTotal.WithLabelValues("panic").Inc()
				log.Printf("Tracker worker: PANIC in cycle for series %s: %v", seriesID, r)
			}
		}()
		result, err = w.tracker.RunCycle(ctx, seriesID)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	state := w.series[seriesID]
	state.inFlight = false
	if result != nil {
		state.lastResult = result
	}

	if err != nil {
		state.lastError = err.Error()
		state.consecErrors++
		if state.backoff == 0 {
			state.backoff = w.backoffInitial
		} else {
			state.backoff *= 2
			if state.backoff > w.backoffMax {
				state.backoff = w.backoffMax
			}
		}
		state.nextAttempt = time.Now().Add(state.backoff)
		log.Printf("Tracker worker: cycle failed for series %s (attempt %d, next in %v): %v",
			seriesID, state.consecErrors, state.backoff, err)
		return
	}

	state.lastError = ""
	state.consecErrors = 0
	state.backoff = 0
	state.nextAttempt = time.Time{}
	w.cyclesToday++

	if result.SoldCount > 0 || result.SwapSuspectCount > 0 || result.NewCount > 0 {
		log.Printf("Tracker worker: series %s reconciled: %d new, %d sold, %d swap suspects, max sold %d",
			seriesID, result.NewCount, result.SoldCount, result.SwapSuspectCount, result.MaxSold)
	}
}

// TriggerCycle runs a cycle for one series immediately, outside the sweep
// schedule. Used by the manual refresh API. Returns an error if the series
// already has a cycle in flight.
func (w *TrackerWorker) TriggerCycle(ctx context.Context, seriesID string) (*CycleResult, error) {
	w.mu.Lock()
	state, ok := w.series[seriesID]
	if !ok {
		state = &seriesState{}
		w.series[seriesID] = state
	}
	if state.inFlight {
		w.mu.Unlock()
		return nil, fmt.Errorf("series %s already has a cycle in flight", seriesID)
	}
	state.inFlight = true
	w.mu.Unlock()

	w.runSeriesCycle(ctx, seriesID)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if state.lastError != "" {
		return state.lastResult, fmt.Errorf("%s", state.lastError)
	}
	return state.lastResult, nil
}

// resetDailyStatsIfNeeded resets cyclesToday at midnight.
func (w *TrackerWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Printf("Tracker worker: daily stats reset (previous day: %d cycles)", w.cyclesToday)
		}
		w.cyclesToday = 0
		w.lastStatsDay = today
	}
}

// GetStatus returns the current worker status.
func (w *TrackerWorker) GetStatus() TrackerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := TrackerStatus{
		LastSweepTime: w.lastSweepTime,
		NextSweepTime: w.lastSweepTime.Add(w.pollInterval),
		CyclesToday:   w.cyclesToday,
	}
	for id, state := range w.series {
		status.Series = append(status.Series, SeriesStatus{
			SeriesID:     id,
			Name:         state.name,
			LastResult:   state.lastResult,
			LastError:    state.lastError,
			ConsecErrors: state.consecErrors,
			NextAttempt:  state.nextAttempt,
		})
	}
	return status
}
