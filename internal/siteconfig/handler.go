package siteconfig

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/librarium/internal/apperror"
)

// Handler exposes the site configuration over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a site config handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetPublic handles GET /api/site. No authentication; only branding fields.
func (h *Handler) GetPublic(c echo.Context) error {
	site, err := h.service.Public(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, site)
}

// GetConfig handles GET /admin/api/config. Admin session required; the
// route registration applies the middleware.
func (h *Handler) GetConfig(c echo.Context) error {
	cfg, err := h.service.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

// UpdateConfig handles PUT /admin/api/config with a partial patch body.
func (h *Handler) UpdateConfig(c echo.Context) error {
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewValidation("Invalid request body")
	}

	cfg, err := h.service.Update(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}
