package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkflow-go/templates/internal/domain/template"
	"github.com/linkflow-go/templates/internal/services/template/initializer"
	"github.com/linkflow-go/templates/internal/services/template/service"
	"github.com/linkflow-go/templates/pkg/logger"
	"github.com/linkflow-go/templates/pkg/resilience"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TemplateHandlers struct {
	manager     *service.Manager
	initializer *initializer.Initializer
	retry       resilience.RetryConfig
	pingers     []Pinger
	logger      logger.Logger
}

// NewTemplateHandlers builds the HTTP handlers. Promotions that lose a race
// are retried up to conflictRetries times.
func NewTemplateHandlers(
	manager *service.Manager,
	seeder *initializer.Initializer,
	conflictRetries int,
	log logger.Logger,
	pingers ...Pinger,
) *TemplateHandlers {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = conflictRetries
	retry.ShouldRetry = func(err error) bool {
		return errors.Is(err, template.ErrPromotionConflict)
	}

	return &TemplateHandlers{
		manager:     manager,
		initializer: seeder,
		retry:       retry,
		pingers:     pingers,
		logger:      log,
	}
}

// RegisterRoutes mounts the template API on r.
func (h *TemplateHandlers) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1/templates")
	{
		v1.GET("", h.ListTemplates)
		v1.POST("/migrate", h.MigrateDefinition)
		v1.POST("/bootstrap", h.Bootstrap)

		v1.POST("/:category", h.CreateTemplate)
		v1.GET("/:category/definition", h.GetDefinition)

		v1.GET("/:category/versions", h.GetVersionHistory)
		v1.GET("/:category/versions/current", h.GetCurrentVersion)
		v1.POST("/:category/versions", h.CreateVersion)
		v1.POST("/:category/versions/:version/deprecate", h.DeprecateVersion)
	}
}

// Health check handlers
func (h *TemplateHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *TemplateHandlers) Ready(c *gin.Context) {
	for _, p := range h.pingers {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *TemplateHandlers) ListTemplates(c *gin.Context) {
	templates, err := h.manager.ListTemplates(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list templates", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"templates":  templates,
		"total":      len(templates),
		"categories": h.manager.Categories(),
	})
}

type createTemplateRequest struct {
	InitialVersion string `json:"initialVersion" binding:"required"`
}

func (h *TemplateHandlers) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl, version, err := h.manager.CreateTemplateFromFactory(c.Request.Context(), c.Param("category"), req.InitialVersion)
	if err != nil {
		h.respondError(c, "Failed to create template", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"template": tmpl,
		"version":  version,
	})
}

func (h *TemplateHandlers) GetVersionHistory(c *gin.Context) {
	category := c.Param("category")

	history, err := h.manager.GetVersionHistory(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, "Failed to get version history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"versions": history,
	})
}

func (h *TemplateHandlers) GetCurrentVersion(c *gin.Context) {
	version, err := h.manager.GetCurrentVersion(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.respondError(c, "Failed to get current version", err)
		return
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Current version not found"})
		return
	}

	c.JSON(http.StatusOK, version)
}

func (h *TemplateHandlers) CreateVersion(c *gin.Context) {
	var req template.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	category := c.Param("category")

	version, err := resilience.RetryWithResult(ctx, h.retry, func() (*template.TemplateVersion, error) {
		return h.manager.CreateNewVersion(ctx, category, req)
	})
	if err != nil {
		h.respondError(c, "Failed to create version", err)
		return
	}

	c.JSON(http.StatusCreated, version)
}

func (h *TemplateHandlers) DeprecateVersion(c *gin.Context) {
	category := c.Param("category")
	version := c.Param("version")

	ok, err := h.manager.DeprecateVersion(c.Request.Context(), category, version)
	if err != nil {
		h.respondError(c, "Failed to deprecate version", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Version not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category":   category,
		"version":    version,
		"deprecated": true,
	})
}

func (h *TemplateHandlers) GetDefinition(c *gin.Context) {
	var version *string
	if v, ok := c.GetQuery("version"); ok && v != "" {
		version = &v
	}

	definition, err := h.manager.GetTemplateDefinition(c.Request.Context(), c.Param("category"), version)
	if err != nil {
		h.respondError(c, "Failed to get template definition", err)
		return
	}
	if definition == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template definition not found"})
		return
	}

	c.JSON(http.StatusOK, definition)
}

type migrateRequest struct {
	Definition  template.Definition `json:"definition" binding:"required"`
	FromVersion string              `json:"fromVersion" binding:"required"`
	ToVersion   string              `json:"toVersion" binding:"required"`
}

func (h *TemplateHandlers) MigrateDefinition(c *gin.Context) {
	var req migrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.manager.MigrateTemplateDefinition(req.Definition, req.FromVersion, req.ToVersion))
}

func (h *TemplateHandlers) Bootstrap(c *gin.Context) {
	summary := h.initializer.Run(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

func (h *TemplateHandlers) respondError(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", c.FullPath())
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps lifecycle errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, template.ErrTemplateAlreadyExists),
		errors.Is(err, template.ErrVersionAlreadyExists),
		errors.Is(err, template.ErrCannotDeprecateCurrent),
		errors.Is(err, template.ErrPromotionConflict):
		return http.StatusConflict
	case errors.Is(err, template.ErrTemplateNotFound),
		errors.Is(err, template.ErrDefinitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrInvalidVersionFormat),
		errors.Is(err, template.ErrDefinitionRequired):
		return http.StatusBadRequest
	case errors.Is(err, template.ErrNotNewerThanCurrent):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
