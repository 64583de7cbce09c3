package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/transport/http/middleware"
	"github.com/caldora/practice-authz/internal/usecase"
)

// AuthzHandler evaluates permission checks for the authenticated caller.
type AuthzHandler struct {
	authz *usecase.AuthorizationService
}

// NewAuthzHandler builds a new authorization handler instance.
func NewAuthzHandler(authz *usecase.AuthorizationService) *AuthzHandler {
	return &AuthzHandler{authz: authz}
}

// Check godoc
// @Summary Check a permission
// @Description Evaluates whether the caller holds one of the named permissions.
// @Tags Authorization
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body CheckRequest true "Permission check request"
// @Success 200 {object} CheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authz/check [post]
func (h *AuthzHandler) Check(c *gin.Context) {
	uctx := middleware.GetUserContext(c)
	if uctx == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid check payload"))
		return
	}

	candidates := make([]string, 0, len(req.Permissions)+1)
	if name := strings.TrimSpace(req.Permission); name != "" {
		candidates = append(candidates, name)
	}
	for _, name := range req.Permissions {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	if len(candidates) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "at least one permission is required"))
		return
	}

	decision, err := h.authz.CheckAny(c.Request.Context(), uctx, candidates, req.ResourceID, req.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPermissionName) ||
			errors.Is(err, domain.ErrUnknownAction) ||
			errors.Is(err, domain.ErrUnknownScope) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed permission name"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "permission check failed"))
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Granted:    decision.Granted,
		Permission: decision.Permission,
		Scope:      string(decision.Scope),
		Reason:     string(decision.Reason),
	})
}

// Scope godoc
// @Summary Resolve the caller's access scope
// @Description Returns the widest data scope the caller holds for a resource/action pair.
// @Tags Authorization
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param resource query string true "Resource name"
// @Param action query string true "Action name"
// @Success 200 {object} ScopeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authz/scope [get]
func (h *AuthzHandler) Scope(c *gin.Context) {
	uctx := middleware.GetUserContext(c)
	if uctx == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	resource := strings.TrimSpace(c.Query("resource"))
	if resource == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resource query parameter is required"))
		return
	}

	action, err := domain.ParseAction(strings.TrimSpace(c.Query("action")))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown action"))
		return
	}

	scope, err := h.authz.GetAccessScope(c.Request.Context(), uctx, resource, action)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "scope resolution failed"))
		return
	}

	c.JSON(http.StatusOK, ScopeResponse{
		Denied:          scope.Denied,
		Scope:           string(scope.Scope),
		UserID:          scope.UserID,
		OrganizationIDs: scope.OrganizationIDs,
	})
}

// Context godoc
// @Summary Inspect the caller's authorization context
// @Description Returns the materialized context used for permission decisions.
// @Tags Authorization
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} ContextResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/authz/context [get]
func (h *AuthzHandler) Context(c *gin.Context) {
	uctx := middleware.GetUserContext(c)
	if uctx == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, ContextResponse{
		UserID:                  uctx.UserID,
		CurrentOrganizationID:   uctx.CurrentOrganizationID,
		Organizations:           uctx.Organizations,
		AccessibleOrganizations: uctx.AccessibleOrganizations,
		Permissions:             uctx.Permissions.Names(),
		IsSuperAdmin:            uctx.IsSuperAdmin,
		BuiltAt:                 uctx.BuiltAt,
	})
}
