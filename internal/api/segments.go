package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/stats"
	"whatsapp-dispatch/internal/store"
)

type SegmentHandler struct {
	Store store.Store
	Stats *stats.Aggregator
}

func NewSegmentHandler(s store.Store, aggregator *stats.Aggregator) *SegmentHandler {
	return &SegmentHandler{Store: s, Stats: aggregator}
}

type upsertSegmentRequest struct {
	ID               string `json:"id" binding:"required"`
	Name             string `json:"name"`
	FilterConditions string `json:"filter_conditions"`
	AutoUpdate       bool   `json:"auto_update"`
}

func (h *SegmentHandler) SaveSegment(c *gin.Context) {
	var req upsertSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := store.ParseContactFilter(req.FilterConditions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter conditions must be valid JSON"})
		return
	}

	segment := &models.Segment{
		ID:               req.ID,
		Name:             req.Name,
		FilterConditions: req.FilterConditions,
		AutoUpdate:       req.AutoUpdate,
	}
	ctx := c.Request.Context()
	if err := h.Store.SaveSegment(ctx, segment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.Stats.RefreshSegment(ctx, segment.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	segment, err := h.Store.GetSegment(ctx, segment.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, segment)
}

func (h *SegmentHandler) GetSegment(c *gin.Context) {
	segment, err := h.Store.GetSegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, segment)
}

// RefreshSegment recomputes the cached contact count on demand.
func (h *SegmentHandler) RefreshSegment(c *gin.Context) {
	count, err := h.Stats.RefreshSegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact_count": count})
}

// GetSegmentContacts resolves the segment's current contact set.
func (h *SegmentHandler) GetSegmentContacts(c *gin.Context) {
	ctx := c.Request.Context()
	segment, err := h.Store.GetSegment(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "segment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	filter, err := store.ParseContactFilter(segment.FilterConditions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter conditions must be valid JSON"})
		return
	}
	contacts, err := h.Store.FindContacts(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}
