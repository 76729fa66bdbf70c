package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/godocscan/internal/domain"
)

// QueueController defines the queue maintenance operations the API exposes.
type QueueController interface {
	ResetStuckItems(ctx context.Context) (int64, error)
	QueueStats(ctx context.Context) (*domain.QueueStats, error)
}

// QueueLister provides paged queue entry listings.
type QueueLister interface {
	List(ctx context.Context, status string, limit, offset int) ([]*domain.QueueEntry, error)
}

// QueueHandler handles queue-related HTTP requests.
type QueueHandler struct {
	processor QueueController
	queue     QueueLister
	scheduler SchedulerController
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(processor QueueController, queue QueueLister, sched SchedulerController) *QueueHandler {
	return &QueueHandler{
		processor: processor,
		queue:     queue,
		scheduler: sched,
	}
}

// ListEntries handles GET /api/v1/queue
func (h *QueueHandler) ListEntries(c *gin.Context) {
	status := c.Query("status")
	limit, offset := parseLimitOffset(c)

	entries, err := h.queue.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondInternalError(c, "Failed to retrieve queue entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetStats handles GET /api/v1/queue/stats
func (h *QueueHandler) GetStats(c *gin.Context) {
	stats, err := h.processor.QueueStats(c.Request.Context())
	if err != nil {
		respondInternalError(c, "Failed to retrieve queue stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerProcess handles POST /api/v1/queue/process
//
// The drain is single-flight: a trigger while a drain is running is
// absorbed, which the response does not distinguish.
func (h *QueueHandler) TriggerProcess(c *gin.Context) {
	h.scheduler.TriggerProcessor(context.Background())

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Queue processing started",
	})
}

// ResetStuck handles POST /api/v1/queue/reset-stuck
func (h *QueueHandler) ResetStuck(c *gin.Context) {
	reset, err := h.processor.ResetStuckItems(c.Request.Context())
	if err != nil {
		respondInternalError(c, "Failed to reset stuck entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reset": reset,
	})
}
