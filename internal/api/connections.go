package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/transport"
)

type ConnectionHandler struct {
	Store     store.Store
	Transport *transport.Client
}

func NewConnectionHandler(s store.Store, t *transport.Client) *ConnectionHandler {
	return &ConnectionHandler{Store: s, Transport: t}
}

type createConnectionRequest struct {
	ID                  string `json:"id" binding:"required"`
	PhoneNumber         string `json:"phone_number" binding:"required"`
	ConnectionMethod    string `json:"connection_method"`
	BrowserName         string `json:"browser_name"`
	BrowserVersion      string `json:"browser_version"`
	MarkOnlineOnConnect bool   `json:"mark_online_on_connect"`
	SyncFullHistory     bool   `json:"sync_full_history"`
	DailyLimit          int    `json:"daily_limit"`
	MonthlyLimit        int    `json:"monthly_limit"`
}

func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	phone, err := models.CanonicalPhone(req.PhoneNumber)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn := &models.Connection{
		ID:                  req.ID,
		PhoneNumber:         phone,
		Status:              models.ConnectionDisconnected,
		ConnectionMethod:    req.ConnectionMethod,
		BrowserName:         req.BrowserName,
		BrowserVersion:      req.BrowserVersion,
		MarkOnlineOnConnect: req.MarkOnlineOnConnect,
		SyncFullHistory:     req.SyncFullHistory,
		DailyLimit:          req.DailyLimit,
		MonthlyLimit:        req.MonthlyLimit,
	}
	if conn.DailyLimit <= 0 {
		conn.DailyLimit = 1000
	}
	if conn.MonthlyLimit <= 0 {
		conn.MonthlyLimit = 10000
	}
	if err := h.Store.SaveConnection(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h *ConnectionHandler) GetConnections(c *gin.Context) {
	conns, err := h.Store.ListConnections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conns == nil {
		conns = []models.Connection{}
	}
	c.JSON(http.StatusOK, conns)
}

// Connect initiates the WhatsApp session through the transport service.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := h.Store.GetConnection(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Transport.Connect(ctx, transport.ConnectRequestFor(conn))
	if err != nil {
		log.Error().Err(err).Str("connection", conn.ID).Msg("transport connect")
		conn.Status = models.ConnectionFailed
		if saveErr := h.Store.SaveConnection(ctx, conn); saveErr != nil {
			log.Error().Err(saveErr).Str("connection", conn.ID).Msg("saving failed connection status")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Connection failed: " + err.Error()})
		return
	}

	conn.Status = models.ConnectionConnecting
	if resp.PairingCode != "" {
		conn.PairingCode = resp.PairingCode
	}
	if err := h.Store.SaveConnection(ctx, conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": conn.Status, "pairing_code": conn.PairingCode})
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := h.Store.GetConnection(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.Transport.Disconnect(ctx, conn.ID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Disconnect failed: " + err.Error()})
		return
	}

	now := time.Now()
	conn.Status = models.ConnectionDisconnected
	conn.LastDisconnected = &now
	if err := h.Store.SaveConnection(ctx, conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": conn.Status})
}

// GetConnectionStatus returns the session status plus counter usage.
func (h *ConnectionHandler) GetConnectionStatus(c *gin.Context) {
	conn, err := h.Store.GetConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         conn.Status,
		"last_connected": conn.LastConnected,
		"daily_sent":     conn.DailySent,
		"monthly_sent":   conn.MonthlySent,
		"daily_limit":    conn.DailyLimit,
		"monthly_limit":  conn.MonthlyLimit,
	})
}

type contactInfoRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// GetContactInfo asks the transport service for live WhatsApp profile
// data (registration, profile name) of a phone number.
func (h *ConnectionHandler) GetContactInfo(c *gin.Context) {
	var req contactInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	conn, err := h.Store.GetConnection(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	phone, err := models.CanonicalPhone(req.PhoneNumber)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.Transport.GetContactInfo(ctx, conn.ID, phone)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Contact lookup failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetServiceStatus proxies the transport service health payload.
func (h *ConnectionHandler) GetServiceStatus(c *gin.Context) {
	status, err := h.Transport.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Service not responding: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
