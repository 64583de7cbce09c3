package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/caldora/practice-authz/internal/usecase"
)

// OrganizationHandler manages the tenancy tree.
type OrganizationHandler struct {
	organizations *usecase.OrganizationService
}

// NewOrganizationHandler builds a new organization handler instance.
func NewOrganizationHandler(organizations *usecase.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations}
}

// Create godoc
// @Summary Create an organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body OrganizationCreateRequest true "Organization create request"
// @Success 201 {object} OrganizationPayload
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req OrganizationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid organization payload"))
		return
	}

	organization, err := h.organizations.CreateOrganization(c.Request.Context(), usecase.CreateOrganizationInput{
		Name:     strings.TrimSpace(req.Name),
		ParentID: req.ParentID,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrParentNotFound, Status: http.StatusBadRequest, Message: "parent organization not found"},
		}, http.StatusInternalServerError, "failed to create organization")
		return
	}

	c.JSON(http.StatusCreated, NewOrganizationPayload(*organization))
}

// Get godoc
// @Summary Fetch an organization
// @Tags Organizations
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Organization ID"
// @Success 200 {object} OrganizationPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/organizations/{id} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "organization id is required"))
		return
	}

	organization, err := h.organizations.GetOrganization(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		}, http.StatusInternalServerError, "failed to load organization")
		return
	}

	c.JSON(http.StatusOK, NewOrganizationPayload(*organization))
}

// Descendants godoc
// @Summary List an organization's subtree
// @Tags Organizations
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Organization ID"
// @Success 200 {object} DescendantsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/organizations/{id}/descendants [get]
func (h *OrganizationHandler) Descendants(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "organization id is required"))
		return
	}

	descendants, err := h.organizations.ListDescendants(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		}, http.StatusInternalServerError, "failed to resolve descendants")
		return
	}

	c.JSON(http.StatusOK, DescendantsResponse{
		OrganizationID: id,
		Descendants:    descendants,
	})
}

// Deactivate godoc
// @Summary Deactivate an organization
// @Tags Organizations
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Organization ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/organizations/{id}/deactivate [post]
func (h *OrganizationHandler) Deactivate(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "organization id is required"))
		return
	}

	if err := h.organizations.DeactivateOrganization(c.Request.Context(), id); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrOrganizationNotFound, Status: http.StatusNotFound, Message: "organization not found"},
		}, http.StatusInternalServerError, "failed to deactivate organization")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "organization deactivated"})
}
