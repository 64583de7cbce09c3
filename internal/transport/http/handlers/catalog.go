package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/usecase"
)

// CatalogHandler exposes the permission catalog.
type CatalogHandler struct {
	catalog *usecase.CatalogService
}

// NewCatalogHandler builds a new catalog handler instance.
func NewCatalogHandler(catalog *usecase.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List godoc
// @Summary List the permission catalog
// @Tags Catalog
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {array} PermissionPayload
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/catalog [get]
func (h *CatalogHandler) List(c *gin.Context) {
	permissions, err := h.catalog.ListCatalog(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list catalog"))
		return
	}

	payload := make([]PermissionPayload, 0, len(permissions))
	for _, permission := range permissions {
		payload = append(payload, NewPermissionPayload(permission))
	}

	c.JSON(http.StatusOK, payload)
}

// Seed godoc
// @Summary Seed the permission catalog
// @Description Upserts catalog entries idempotently and reports the number of rows written.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body CatalogSeedRequest true "Catalog entries"
// @Success 200 {object} CatalogSeedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/catalog/seed [post]
func (h *CatalogHandler) Seed(c *gin.Context) {
	var req CatalogSeedRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid catalog payload"))
		return
	}

	entries := make([]usecase.CatalogEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, usecase.CatalogEntry{
			Resource:    entry.Resource,
			Action:      entry.Action,
			Scope:       entry.Scope,
			Description: entry.Description,
		})
	}

	written, err := h.catalog.Seed(c.Request.Context(), entries)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAction) || errors.Is(err, domain.ErrUnknownScope) ||
			errors.Is(err, domain.ErrInvalidPermissionName) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid catalog entry"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to seed catalog"))
		return
	}

	c.JSON(http.StatusOK, CatalogSeedResponse{Written: written})
}
