package content

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the authenticated content endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a content handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetFiles handles GET /api/github/files: the markdown tree for the sidebar.
func (h *Handler) GetFiles(c echo.Context) error {
	tree, err := h.service.GetTree(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"files": tree})
}

// GetContent handles GET /api/github/content?path=...&render=html.
func (h *Handler) GetContent(c echo.Context) error {
	path := c.QueryParam("path")
	renderHTML := c.QueryParam("render") == "html"

	doc, err := h.service.GetDocument(c.Request().Context(), path, renderHTML)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// TestRepo handles GET /admin/api/github/test: the admin panel's
// connection check against the configured repository.
func (h *Handler) TestRepo(c echo.Context) error {
	info, err := h.service.CheckRepoAccess(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"accessible": true, "repository": info})
}
