package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/un4givn/FlipForce/internal/services"
)

type TrackerHandler struct {
	worker *services.TrackerWorker
}

func NewTrackerHandler(worker *services.TrackerWorker) *TrackerHandler {
	return &TrackerHandler{worker: worker}
}

// GetStatus returns the reconciliation worker's current status.
func (h *TrackerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// TriggerCycle runs a reconciliation cycle for one series immediately.
func (h *TrackerHandler) TriggerCycle(c *gin.Context) {
	seriesID := c.Param("id")
	if seriesID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series id is required"})
		return
	}

	result, err := h.worker.TriggerCycle(c.Request.Context(), seriesID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
