package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

type ContactHandler struct {
	Store store.Store
}

func NewContactHandler(s store.Store) *ContactHandler {
	return &ContactHandler{Store: s}
}

type upsertContactRequest struct {
	PhoneNumber  string   `json:"phone_number" binding:"required"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	OptInStatus  string   `json:"opt_in_status"`
	Tags         []string `json:"tags"`
	CustomFields string   `json:"custom_fields"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req upsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.upsertContact(c, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPhone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) upsertContact(c *gin.Context, req upsertContactRequest) (*models.Contact, error) {
	phone, err := models.CanonicalPhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.CustomFields != "" && !json.Valid([]byte(req.CustomFields)) {
		return nil, errors.New("custom fields must be valid JSON")
	}

	ctx := c.Request.Context()
	contact, err := h.Store.GetContact(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		contact = &models.Contact{
			PhoneNumber: phone,
			WhatsAppID:  models.WhatsAppJID(phone),
			OptInStatus: models.OptedIn,
			Tags:        "[]",
		}
	} else if err != nil {
		return nil, err
	}

	if req.Name != "" {
		contact.Name = req.Name
	}
	if req.Email != "" {
		contact.Email = req.Email
	}
	if req.OptInStatus != "" {
		contact.OptInStatus = req.OptInStatus
	}
	if req.CustomFields != "" {
		contact.CustomFields = req.CustomFields
	}
	for _, tag := range req.Tags {
		contact.Tags = addTag(contact.Tags, tag)
	}

	if err := h.Store.SaveContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	filter := store.ContactFilter{OptInStatus: c.Query("opt_in_status")}
	if tag := c.Query("tag"); tag != "" {
		filter.Tags = []string{tag}
	}
	contacts, err := h.Store.FindContacts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	contact, err := h.Store.GetContact(c.Request.Context(), c.Param("phone"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) OptIn(c *gin.Context) {
	h.setOptStatus(c, models.OptedIn)
}

func (h *ContactHandler) OptOut(c *gin.Context) {
	h.setOptStatus(c, models.OptedOut)
}

func (h *ContactHandler) setOptStatus(c *gin.Context, status string) {
	ctx := c.Request.Context()
	contact, err := h.Store.GetContact(ctx, c.Param("phone"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	contact.OptInStatus = status
	if status == models.OptedIn {
		contact.OptInDate = &now
		contact.OptOutDate = nil
	} else {
		contact.OptOutDate = &now
	}
	if err := h.Store.SaveContact(ctx, contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contact)
}

type tagRequest struct {
	Tag string `json:"tag" binding:"required"`
}

func (h *ContactHandler) AddTag(c *gin.Context) {
	h.updateTags(c, addTag)
}

func (h *ContactHandler) RemoveTag(c *gin.Context) {
	h.updateTags(c, removeTag)
}

func (h *ContactHandler) updateTags(c *gin.Context, apply func(stored, tag string) string) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	contact, err := h.Store.GetContact(ctx, c.Param("phone"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	contact.Tags = apply(contact.Tags, req.Tag)
	if err := h.Store.SaveContact(ctx, contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contact)
}

func addTag(stored, tag string) string {
	var tags []string
	json.Unmarshal([]byte(stored), &tags)
	for _, t := range tags {
		if t == tag {
			return stored
		}
	}
	tags = append(tags, tag)
	data, _ := json.Marshal(tags)
	return string(data)
}

func removeTag(stored, tag string) string {
	var tags []string
	json.Unmarshal([]byte(stored), &tags)
	kept := tags[:0]
	for _, t := range tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	if kept == nil {
		kept = []string{}
	}
	data, _ := json.Marshal(kept)
	return string(data)
}

type importContactsRequest struct {
	Contacts []upsertContactRequest `json:"contacts" binding:"required"`
}

// ImportContacts bulk-upserts contacts. Per-row failures are collected
// and reported; one bad row never aborts the rest.
func (h *ContactHandler) ImportContacts(c *gin.Context) {
	var req importContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported := 0
	var importErrors []string
	for _, row := range req.Contacts {
		if _, err := h.upsertContact(c, row); err != nil {
			importErrors = append(importErrors, row.PhoneNumber+": "+err.Error())
			continue
		}
		imported++
	}
	if importErrors == nil {
		importErrors = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "errors": importErrors})
}

// GetConversation returns the last 100 message logs for a contact,
// newest first.
func (h *ContactHandler) GetConversation(c *gin.Context) {
	logs, err := h.Store.FindMessageLogsByContact(c.Request.Context(), c.Param("phone"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []models.MessageLog{}
	}
	c.JSON(http.StatusOK, logs)
}
