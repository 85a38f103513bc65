package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

type AutoReplyHandler struct {
	Store store.Store
}

func NewAutoReplyHandler(s store.Store) *AutoReplyHandler {
	return &AutoReplyHandler{Store: s}
}

func (h *AutoReplyHandler) GetRules(c *gin.Context) {
	rules, err := h.Store.ListAutoReplyRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rules == nil {
		rules = []models.AutoReplyRule{}
	}
	c.JSON(http.StatusOK, rules)
}

type upsertRuleRequest struct {
	Name          string `json:"name" binding:"required"`
	Active        *bool  `json:"active"`
	ConnectionID  string `json:"connection_id"`
	TriggerType   string `json:"trigger_type" binding:"required"`
	TriggerValue  string `json:"trigger_value"`
	ReplyTemplate string `json:"reply_template"`
	CustomReply   string `json:"custom_reply"`
	Priority      int    `json:"priority"`
}

func (h *AutoReplyHandler) CreateRule(c *gin.Context) {
	var req upsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReplyTemplate == "" && req.CustomReply == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either reply_template or custom_reply is required"})
		return
	}

	rule := &models.AutoReplyRule{
		Name:          req.Name,
		Active:        true,
		ConnectionID:  req.ConnectionID,
		TriggerType:   req.TriggerType,
		TriggerValue:  req.TriggerValue,
		ReplyTemplate: req.ReplyTemplate,
		CustomReply:   req.CustomReply,
		Priority:      req.Priority,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := h.Store.SaveAutoReplyRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *AutoReplyHandler) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}
	if err := h.Store.DeleteAutoReplyRule(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Rule deleted"})
}
