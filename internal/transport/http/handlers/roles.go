package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/transport/http/middleware"
	"github.com/caldora/practice-authz/internal/usecase"
)

// RoleHandler manages roles, their permission sets, and user grants.
type RoleHandler struct {
	roles *usecase.RoleService
	authz *usecase.AuthorizationService
}

// NewRoleHandler builds a new role handler instance.
func NewRoleHandler(roles *usecase.RoleService, authz *usecase.AuthorizationService) *RoleHandler {
	return &RoleHandler{roles: roles, authz: authz}
}

// List godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {array} RolePayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	uctx := middleware.GetUserContext(c)
	if uctx == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	scope, err := h.authz.GetAccessScope(c.Request.Context(), uctx, "roles", domain.ActionRead)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resolve access scope"))
		return
	}

	roles, err := h.roles.ListRoles(c.Request.Context(), scope.Filter())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list roles"))
		return
	}

	payload := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, NewRolePayload(role))
	}

	c.JSON(http.StatusOK, payload)
}

// Create godoc
// @Summary Create a new role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body RoleCreateRequest true "Role create request"
// @Success 201 {object} RolePayload
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || actorID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	input := usecase.CreateRoleInput{
		Name:           strings.TrimSpace(req.Name),
		OrganizationID: req.OrganizationID,
		PermissionIDs:  req.PermissionIDs,
	}
	if req.Description != nil {
		if trimmed := strings.TrimSpace(*req.Description); trimmed != "" {
			input.Description = &trimmed
		}
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actorID, input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
			{Err: usecase.ErrReservedRoleName, Status: http.StatusBadRequest, Message: "role name is reserved"},
		}, http.StatusInternalServerError, "failed to create role")
		return
	}

	c.JSON(http.StatusCreated, NewRolePayload(*role))
}

// AssignPermissions godoc
// @Summary Attach permissions to a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param request body RolePermissionsRequest true "Permission IDs"
// @Success 200 {object} AffectedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [post]
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	h.mutatePermissions(c, h.roles.AssignPermissions, "failed to assign permissions")
}

// RevokePermissions godoc
// @Summary Detach permissions from a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param request body RolePermissionsRequest true "Permission IDs"
// @Success 200 {object} AffectedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [delete]
func (h *RoleHandler) RevokePermissions(c *gin.Context) {
	h.mutatePermissions(c, h.roles.RevokePermissions, "failed to revoke permissions")
}

func (h *RoleHandler) mutatePermissions(
	c *gin.Context,
	op func(ctx context.Context, actorID, roleID string, permissionIDs []string) (int, error),
	fallbackMessage string,
) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || actorID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	roleID := strings.TrimSpace(c.Param("id"))
	if roleID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role id is required"))
		return
	}

	var req RolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PermissionIDs) == 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permissions payload"))
		return
	}

	affected, err := op(c.Request.Context(), actorID, roleID, req.PermissionIDs)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, fallbackMessage)
		return
	}

	c.JSON(http.StatusOK, AffectedResponse{Affected: affected})
}

// Delete godoc
// @Summary Delete a role
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	h.removeRole(c, h.roles.DeleteRole, "role deleted")
}

// Deactivate godoc
// @Summary Deactivate a role
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/deactivate [post]
func (h *RoleHandler) Deactivate(c *gin.Context) {
	h.removeRole(c, h.roles.DeactivateRole, "role deactivated")
}

func (h *RoleHandler) removeRole(
	c *gin.Context,
	op func(ctx context.Context, actorID, roleID string) error,
	message string,
) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || actorID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	roleID := strings.TrimSpace(c.Param("id"))
	if roleID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role id is required"))
		return
	}

	if err := op(c.Request.Context(), actorID, roleID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Grant godoc
// @Summary Grant a role to a user
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param request body RoleGrantRequest true "Grant request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/grants [post]
func (h *RoleHandler) Grant(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || actorID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	roleID := strings.TrimSpace(c.Param("id"))
	if roleID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role id is required"))
		return
	}

	var req RoleGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid grant payload"))
		return
	}

	err := h.roles.GrantRole(c.Request.Context(), usecase.GrantRoleInput{
		UserID:         strings.TrimSpace(req.UserID),
		RoleID:         roleID,
		OrganizationID: req.OrganizationID,
		GrantedBy:      actorID,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "user not found"},
			{Err: usecase.ErrGrantExpiryInPast, Status: http.StatusBadRequest, Message: "grant expiry must be in the future"},
		}, http.StatusInternalServerError, "failed to grant role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role granted"})
}

// Revoke godoc
// @Summary Revoke a user's role grant
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role ID"
// @Param request body RoleRevokeRequest true "Revoke request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/grants [delete]
func (h *RoleHandler) Revoke(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || actorID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	roleID := strings.TrimSpace(c.Param("id"))
	if roleID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "role id is required"))
		return
	}

	var req RoleRevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid revoke payload"))
		return
	}

	err := h.roles.RevokeRole(c.Request.Context(), actorID, strings.TrimSpace(req.UserID), roleID, req.OrganizationID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "grant not found"},
		}, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role revoked"})
}
