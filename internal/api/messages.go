package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/dispatch"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/ratelimit"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/template"
)

type MessageHandler struct {
	Store store.Store
	Queue *dispatch.Queue
}

func NewMessageHandler(s store.Store, queue *dispatch.Queue) *MessageHandler {
	return &MessageHandler{Store: s, Queue: queue}
}

type sendMessageRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	Recipient    string `json:"recipient" binding:"required"`
	MessageType  string `json:"message_type"`
	Content      string `json:"content"`
	MediaURL     string `json:"media_url"`
	TemplateID   string `json:"template_id"`
}

// SendMessage dispatches one ad-hoc outbound message. With a template_id
// the template is rendered against {name, phone} of the recipient;
// otherwise the raw content/media fields shape the payload.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	conn, err := h.Store.GetConnection(ctx, req.ConnectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	phone, err := models.CanonicalPhone(req.Recipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dreq := dispatch.Request{
		Connection:  conn,
		Recipient:   phone,
		MessageType: req.MessageType,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
	}
	if req.TemplateID != "" {
		tmpl, err := h.Store.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		context := map[string]string{"phone": phone}
		if contact, err := h.Store.GetContact(ctx, phone); err == nil {
			context["name"] = contact.Name
		}
		dreq.Payload = template.BuildMessage(tmpl, context)
		dreq.MessageType = tmpl.TemplateType
		dreq.Content = template.Render(tmpl.Content, context)
		dreq.MediaURL = tmpl.MediaURL
		dreq.TemplateID = tmpl.ID
	} else {
		dreq.Payload = buildAdHocPayload(req)
	}

	logID, err := h.Queue.Enqueue(ctx, dreq)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message_log_id": logID})
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "message_log_id": logID})
	}
}

func buildAdHocPayload(req sendMessageRequest) template.Payload {
	media := &template.Media{URL: req.MediaURL}
	switch req.MessageType {
	case models.TypeImage:
		return template.Payload{Image: media, Caption: req.Content}
	case models.TypeVideo:
		return template.Payload{Video: media, Caption: req.Content}
	case models.TypeAudio:
		return template.Payload{Audio: media}
	case models.TypeDocument:
		return template.Payload{Document: media, Caption: req.Content}
	default:
		return template.TextMessage(req.Content)
	}
}

func (h *MessageHandler) GetMessages(c *gin.Context) {
	logs, err := h.Store.ListRecentMessageLogs(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []models.MessageLog{}
	}
	c.JSON(http.StatusOK, logs)
}
