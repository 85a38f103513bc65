package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/campaign"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/stats"
	"whatsapp-dispatch/internal/store"
)

type CampaignHandler struct {
	Store        store.Store
	Orchestrator *campaign.Orchestrator
	Stats        *stats.Aggregator
}

func NewCampaignHandler(s store.Store, orchestrator *campaign.Orchestrator, aggregator *stats.Aggregator) *CampaignHandler {
	return &CampaignHandler{Store: s, Orchestrator: orchestrator, Stats: aggregator}
}

type createCampaignRequest struct {
	ID               string     `json:"id" binding:"required"`
	Name             string     `json:"name"`
	ConnectionID     string     `json:"connection_id" binding:"required"`
	TargetSegment    string     `json:"target_segment" binding:"required"`
	MessageTemplate  string     `json:"message_template" binding:"required"`
	ScheduleType     string     `json:"schedule_type"`
	ScheduleDatetime *time.Time `json:"schedule_datetime"`
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduleType := req.ScheduleType
	if scheduleType == "" {
		scheduleType = models.ScheduleImmediate
	}
	if scheduleType == models.ScheduleScheduled && req.ScheduleDatetime == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule_datetime is required for scheduled campaigns"})
		return
	}

	ctx := c.Request.Context()
	// Referenced records must exist before the campaign is persisted.
	for _, check := range []func() error{
		func() error { _, err := h.Store.GetConnection(ctx, req.ConnectionID); return err },
		func() error { _, err := h.Store.GetSegment(ctx, req.TargetSegment); return err },
		func() error { _, err := h.Store.GetTemplate(ctx, req.MessageTemplate); return err },
	} {
		if err := check(); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	segment, err := h.Store.GetSegment(ctx, req.TargetSegment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmp := &models.Campaign{
		ID:               req.ID,
		Name:             req.Name,
		ConnectionID:     req.ConnectionID,
		TargetSegment:    req.TargetSegment,
		MessageTemplate:  req.MessageTemplate,
		ScheduleType:     scheduleType,
		ScheduleDatetime: req.ScheduleDatetime,
		Status:           models.CampaignDraft,
		TotalContacts:    segment.ContactCount,
	}
	if err := h.Store.SaveCampaign(ctx, cmp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cmp)
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	cmp, err := h.Store.GetCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	h.lifecycle(c, h.Orchestrator.Start)
}

func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	h.lifecycle(c, h.Orchestrator.Pause)
}

func (h *CampaignHandler) ResumeCampaign(c *gin.Context) {
	h.lifecycle(c, h.Orchestrator.Resume)
}

func (h *CampaignHandler) StopCampaign(c *gin.Context) {
	h.lifecycle(c, h.Orchestrator.Stop)
}

func (h *CampaignHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id string) error) {
	id := c.Param("id")
	if err := op(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The orchestrator wraps lookup errors with the entity that was
			// missing: the campaign itself or its connection.
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmp, err := h.Store.GetCampaign(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": cmp.Status})
}

// GetCampaignStats recomputes and returns the campaign rollup.
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	ctx := c.Request.Context()
	rollup, err := h.Stats.Recompute(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cmp, err := h.Store.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         cmp.Status,
		"total_contacts": cmp.TotalContacts,
		"stats":          rollup,
	})
}
