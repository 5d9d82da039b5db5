package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/un4givn/FlipForce/internal/services"
)

type SeriesHandler struct {
	store *services.Store
}

func NewSeriesHandler(store *services.Store) *SeriesHandler {
	return &SeriesHandler{store: store}
}

// ListSeries returns every tracked pack series.
func (h *SeriesHandler) ListSeries(c *gin.Context) {
	series, err := h.store.ListSeries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

// GetSeries returns one series with its latest analytics attached.
func (h *SeriesHandler) GetSeries(c *gin.Context) {
	id := c.Param("id")

	series, err := h.store.Series(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "series not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	latest, err := h.store.LatestEVROI(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	maxSold, err := h.store.MaxSold(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	totalSold, err := h.store.SalesTally(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"series":     series,
		"latest_ev":  latest,
		"max_sold":   maxSold,
		"total_sold": totalSold,
	})
}

// GetInventory returns the current card snapshot for a series.
func (h *SeriesHandler) GetInventory(c *gin.Context) {
	cards, err := h.store.CurrentInventory(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards, "count": len(cards)})
}

// GetSoldEvents returns recent sold-card events for a series.
func (h *SeriesHandler) GetSoldEvents(c *gin.Context) {
	events, err := h.store.SoldEvents(c.Param("id"), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetSwaps returns recent suspected swap records for a series.
func (h *SeriesHandler) GetSwaps(c *gin.Context) {
	swaps, err := h.store.Swaps(c.Param("id"), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": swaps, "count": len(swaps)})
}

// GetEVROIHistory returns EV/ROI snapshots for a series over a window.
func (h *SeriesHandler) GetEVROIHistory(c *gin.Context) {
	snapshots, err := h.store.EVROIHistory(c.Param("id"), sinceParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
}

// GetCounterHistory returns the packs-sold counter history for a series.
func (h *SeriesHandler) GetCounterHistory(c *gin.Context) {
	snapshots, err := h.store.CounterHistory(c.Param("id"), sinceParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
}

// GetValueHistory returns the total inventory value history for a series.
func (h *SeriesHandler) GetValueHistory(c *gin.Context) {
	snapshots, err := h.store.ValueHistory(c.Param("id"), sinceParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
}

// GetMarketMovers returns series ranked by expected-value movement over a
// window (default 24h).
func (h *SeriesHandler) GetMarketMovers(c *gin.Context) {
	since := sinceParam(c)
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	movers, err := h.store.MarketMovers(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movers": movers, "since": since})
}

func limitParam(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	return limit
}

// sinceParam parses the "hours" look-back query parameter. Zero means no
// lower bound.
func sinceParam(c *gin.Context) time.Time {
	hours, err := strconv.Atoi(c.Query("hours"))
	if err != nil || hours <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-time.Duration(hours) * time.Hour)
}
