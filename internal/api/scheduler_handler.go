package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/scheduler"
)

// SchedulerController defines the scheduler operations the API exposes.
type SchedulerController interface {
	TriggerScan(ctx context.Context, instanceID string)
	TriggerProcessor(ctx context.Context)
	Status() scheduler.Status
}

// InstanceReader provides instance lookups for request validation.
type InstanceReader interface {
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
}

// SchedulerHandler handles scheduler-related HTTP requests.
type SchedulerHandler struct {
	scheduler SchedulerController
	instances InstanceReader
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(sched SchedulerController, instances InstanceReader) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		instances: instances,
	}
}

// GetStatus handles GET /api/v1/scheduler/status
func (h *SchedulerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// TriggerScan handles POST /api/v1/scheduler/instances/:id/scan
//
// The scan runs in the background; the response only confirms the
// instance exists and the scan was started.
func (h *SchedulerHandler) TriggerScan(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		respondBadRequest(c, "Invalid instance ID")
		return
	}

	instance, err := h.instances.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "Instance")
			return
		}
		respondInternalError(c, "Failed to retrieve instance")
		return
	}

	go h.scheduler.TriggerScan(context.Background(), instance.ID)

	c.JSON(http.StatusAccepted, gin.H{
		"instance_id":   instance.ID,
		"instance_name": instance.Name,
		"message":       "Scan started",
	})
}
