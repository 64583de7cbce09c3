package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

var (
	// ErrOrganizationNotFound indicates the organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrParentNotFound indicates the requested parent organization does not exist.
	ErrParentNotFound = errors.New("parent organization not found")
)

// CreateOrganizationInput captures the payload for creating an organization.
type CreateOrganizationInput struct {
	Name     string
	ParentID *string
}

// OrganizationService manages the tenancy tree.
type OrganizationService struct {
	orgs   port.OrganizationRepository
	logger *zap.Logger
}

// NewOrganizationService constructs an OrganizationService.
func NewOrganizationService(orgs port.OrganizationRepository, logger *zap.Logger) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{orgs: orgs, logger: logger}
}

// CreateOrganization adds a node to the tree. The parent, when supplied, must
// exist; linking to an existing node cannot introduce a cycle since the new
// node has no children yet.
func (s *OrganizationService) CreateOrganization(ctx context.Context, input CreateOrganizationInput) (*domain.Organization, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	if input.ParentID != nil {
		if _, err := s.orgs.GetByID(ctx, *input.ParentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, fmt.Errorf("load parent organization: %w", err)
		}
	}

	organization := domain.Organization{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: input.ParentID,
		Active:   true,
	}

	if err := s.orgs.Create(ctx, organization); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	return &organization, nil
}

// GetOrganization fetches a single node.
func (s *OrganizationService) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	organization, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("load organization: %w", err)
	}
	return organization, nil
}

// ListDescendants resolves the organization's subtree, excluding the root.
func (s *OrganizationService) ListDescendants(ctx context.Context, id string) ([]string, error) {
	if _, err := s.GetOrganization(ctx, id); err != nil {
		return nil, err
	}

	descendants, err := s.orgs.Descendants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve descendants: %w", err)
	}
	return descendants, nil
}

// DeactivateOrganization disables a node. Descendants keep their own active
// flags; deactivated nodes drop out of accessible sets at traversal time.
func (s *OrganizationService) DeactivateOrganization(ctx context.Context, id string) error {
	if err := s.orgs.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrganizationNotFound
		}
		return fmt.Errorf("deactivate organization: %w", err)
	}
	return nil
}
