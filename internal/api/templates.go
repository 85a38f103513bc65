package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
	"whatsapp-dispatch/internal/template"
)

type TemplateHandler struct {
	Store store.Store
}

func NewTemplateHandler(s store.Store) *TemplateHandler {
	return &TemplateHandler{Store: s}
}

type upsertTemplateRequest struct {
	ID           string `json:"id" binding:"required"`
	Name         string `json:"name"`
	TemplateType string `json:"template_type"`
	Content      string `json:"content"`
	MediaURL     string `json:"media_url"`
}

func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var req upsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmplType := req.TemplateType
	if tmplType == "" {
		tmplType = models.TypeText
	}
	tmpl := &models.Template{
		ID:           req.ID,
		Name:         req.Name,
		TemplateType: tmplType,
		Content:      req.Content,
		MediaURL:     req.MediaURL,
		Variables:    template.VariablesJSON(req.Content),
	}
	if err := h.Store.SaveTemplate(c.Request.Context(), tmpl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Store.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

type previewTemplateRequest struct {
	Context map[string]string `json:"context"`
}

// PreviewTemplate renders a template with a sample context and returns
// both the rendered text and the transport message object.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	var req previewTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl, err := h.Store.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rendered_content": template.Render(tmpl.Content, req.Context),
		"message_object":   template.BuildMessage(tmpl, req.Context),
	})
}
