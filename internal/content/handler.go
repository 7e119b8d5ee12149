package content

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manav-trails/backend/pkg/response"
)

// Handler serves the gear and trail endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a content handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Gear handles GET /gear.
func (h *Handler) Gear(c *gin.Context) {
	gear, err := h.service.Gear(c.Request.Context())
	if err != nil {
		h.logger.Error("load gear failed", zap.Error(err))
		response.Internal(c, "failed to load gear")
		return
	}
	response.OK(c, gear)
}

// Trails handles GET /trails.
func (h *Handler) Trails(c *gin.Context) {
	trails, err := h.service.Trails(c.Request.Context())
	if err != nil {
		h.logger.Error("load trails failed", zap.Error(err))
		response.Internal(c, "failed to load trails")
		return
	}
	if trails == nil {
		trails = []TrailSummary{}
	}
	response.OK(c, trails)
}

// Trail handles GET /trails/:slug.
func (h *Handler) Trail(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	if slug == "" {
		response.BadRequest(c, "invalid slug")
		return
	}
	trail, err := h.service.Trail(c.Request.Context(), slug)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "trail not found")
		return
	}
	if err != nil {
		h.logger.Error("load trail failed", zap.String("slug", slug), zap.Error(err))
		response.Internal(c, "failed to load trail")
		return
	}
	response.OK(c, trail)
}

// Invalidate handles POST /admin/content/invalidate.
func (h *Handler) Invalidate(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		h.logger.Error("invalidate content cache failed", zap.Error(err))
		response.Internal(c, "failed to invalidate cache")
		return
	}
	h.logger.Info("content cache invalidated")
	response.NoContent(c)
}
