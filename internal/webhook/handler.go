// Package webhook is the consuming surface for events emitted by the
// external transport: session events, incoming messages, and per-message
// status updates.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/autoreply"
	"whatsapp-dispatch/internal/delivery"
	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

// Events receives connection-status notifications. Satisfied by *ws.Hub;
// may be nil.
type Events interface {
	BroadcastEvent(eventType string, data interface{})
}

type Handler struct {
	Store    store.Store
	Delivery *delivery.Engine
	Matcher  *autoreply.Matcher
	Events   Events
}

func NewHandler(s store.Store, engine *delivery.Engine, matcher *autoreply.Matcher, events Events) *Handler {
	return &Handler{Store: s, Delivery: engine, Matcher: matcher, Events: events}
}

type connectionEventRequest struct {
	ConnectionID string            `json:"connection_id" binding:"required"`
	Event        string            `json:"event" binding:"required"`
	Data         map[string]string `json:"data"`
}

// HandleConnectionEvent processes qr_code, pairing_code and
// connection_status events for a session.
func (h *Handler) HandleConnectionEvent(c *gin.Context) {
	var req connectionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.Store.GetConnection(c.Request.Context(), req.ConnectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch req.Event {
	case "qr_code":
		conn.QRCode = req.Data["qr"]
	case "pairing_code":
		conn.PairingCode = req.Data["code"]
	case "connection_status":
		status := req.Data["status"]
		conn.Status = status
		now := time.Now()
		switch status {
		case models.ConnectionConnected:
			conn.LastConnected = &now
		case models.ConnectionDisconnected:
			conn.LastDisconnected = &now
		}
		if h.Events != nil {
			h.Events.BroadcastEvent("connection_status", gin.H{
				"connection_id": conn.ID,
				"status":        status,
			})
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event: " + req.Event})
		return
	}

	if err := h.Store.SaveConnection(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type messageStatusRequest struct {
	MessageLogID string `json:"message_log_id" binding:"required"`
	Status       string `json:"status" binding:"required"`
	MessageID    string `json:"message_id"`
	ErrorMessage string `json:"error_message"`
}

// HandleMessageStatus applies one delivery state transition reported by
// the transport. Out-of-order events are rejected, never reordered; the
// transport redelivers, so rejection plus retry converges.
func (h *Handler) HandleMessageStatus(c *gin.Context) {
	var req messageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Delivery.ApplyByID(c.Request.Context(), req.MessageLogID, req.Status, delivery.Metadata{
		MessageID:    req.MessageID,
		ErrorMessage: req.ErrorMessage,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message log not found"})
	case errors.Is(err, delivery.ErrInvalidTransition):
		log.Warn().Str("message_log", req.MessageLogID).Str("target", req.Status).
			Msg("rejected status transition")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type incomingMessageRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	From         string `json:"from" binding:"required"`
	MessageID    string `json:"message_id"`
	MessageType  string `json:"message_type"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
}

// HandleIncomingMessage ingests one inbound message: it canonicalizes the
// sender, auto-creates the contact, records an inbound log, and runs the
// auto-reply matcher.
func (h *Handler) HandleIncomingMessage(c *gin.Context) {
	var req incomingMessageRequest
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

	phone, err := models.CanonicalPhone(req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.ensureContact(ctx, phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	msgLog := &models.MessageLog{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		Contact:      phone,
		Direction:    models.DirectionInbound,
		MessageType:  msgType,
		Content:      req.Content,
		Status:       models.StatusReceived,
		MessageID:    req.MessageID,
	}
	if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
		msgLog.Timestamp = ts
	}
	if err := h.Store.SaveMessageLog(ctx, msgLog); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	contact.TotalMessagesReceived++
	contact.LastMessageDate = &now
	contact.LastMessageType = msgType
	if err := h.Store.SaveContact(ctx, contact); err != nil {
		log.Error().Err(err).Str("contact", phone).Msg("updating contact after inbound message")
	}

	// The matcher runs off the request path; its send failures are its own.
	if h.Matcher != nil && msgType == models.TypeText {
		go func() {
			if _, err := h.Matcher.Match(context.Background(), conn, contact, req.Content); err != nil {
				log.Error().Err(err).Str("contact", phone).Msg("auto-reply matching")
			}
		}()
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message_log_id": msgLog.ID})
}

func (h *Handler) ensureContact(ctx context.Context, phone string) (*models.Contact, error) {
	contact, err := h.Store.GetContact(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	now := time.Now()
	contact = &models.Contact{
		PhoneNumber: phone,
		WhatsAppID:  models.WhatsAppJID(phone),
		OptInStatus: models.OptedIn,
		OptInDate:   &now,
		Tags:        "[]",
	}
	if err := h.Store.SaveContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}
