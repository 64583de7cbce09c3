package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
)

// AuthorizationService evaluates permission checks against built user
// contexts. Decisions are synchronous, in-memory computations; recording the
// audit trail is the only side effect, and it is best-effort.
type AuthorizationService struct {
	audit     port.AuditSink
	metrics   port.DecisionMetrics
	ownership port.OwnershipResolver
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthorizationService constructs an AuthorizationService.
func NewAuthorizationService(audit port.AuditSink, logger *zap.Logger) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches decision metrics.
func (s *AuthorizationService) WithMetrics(metrics port.DecisionMetrics) *AuthorizationService {
	s.metrics = metrics
	return s
}

// WithOwnershipResolver attaches the resource-service collaborator used to
// verify own-scope checks against a concrete resource. Without a resolver,
// ownership verification stays fully delegated to the resource service.
func (s *AuthorizationService) WithOwnershipResolver(resolver port.OwnershipResolver) *AuthorizationService {
	s.ownership = resolver
	return s
}

// WithClock overrides the clock for deterministic testing.
func (s *AuthorizationService) WithClock(clock func() time.Time) *AuthorizationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CheckPermission evaluates a single permission name. Malformed names are an
// InvalidScope-class error; a missing grant is a structured denial, not an error.
func (s *AuthorizationService) CheckPermission(ctx context.Context, uctx *domain.UserContext, permissionName string, resourceID, organizationID *string) (domain.AccessDecision, error) {
	return s.CheckAny(ctx, uctx, []string{permissionName}, resourceID, organizationID)
}

// CheckAny evaluates an ordered list of candidate permissions for the same
// logical operation and grants on the first success, recording which scope
// justified the grant. Callers use the scope to shape list queries.
func (s *AuthorizationService) CheckAny(ctx context.Context, uctx *domain.UserContext, permissionNames []string, resourceID, organizationID *string) (domain.AccessDecision, error) {
	if uctx == nil {
		return domain.AccessDecision{}, fmt.Errorf("user context is required")
	}
	if len(permissionNames) == 0 {
		return domain.AccessDecision{}, fmt.Errorf("at least one permission name is required")
	}

	refs := make([]domain.PermissionRef, 0, len(permissionNames))
	for _, name := range permissionNames {
		ref, err := domain.ParsePermissionName(name)
		if err != nil {
			return domain.AccessDecision{}, err
		}
		refs = append(refs, ref)
	}

	decision := s.decide(ctx, uctx, refs, resourceID, organizationID)
	s.record(ctx, uctx, decision, resourceID, organizationID)
	return decision, nil
}

// decide is the decision core. Each scope is checked independently against the
// flattened permission set; broader scopes are never implied by narrower ones.
// Only the super-admin path short-circuits.
func (s *AuthorizationService) decide(ctx context.Context, uctx *domain.UserContext, refs []domain.PermissionRef, resourceID, organizationID *string) domain.AccessDecision {
	if uctx.IsSuperAdmin {
		return domain.AccessDecision{
			Granted:    true,
			Permission: refs[0].Name(),
			Scope:      domain.ScopeAll,
			Reason:     domain.ReasonSuperAdmin,
		}
	}

	for _, ref := range refs {
		if !uctx.Permissions.HasRef(ref) {
			continue
		}

		switch ref.Scope {
		case domain.ScopeAll:
			return granted(ref)
		case domain.ScopeOrganization:
			if organizationID == nil || uctx.CanAccessOrganization(*organizationID) {
				return granted(ref)
			}
		case domain.ScopeOwn:
			if s.verifyOwnership(ctx, uctx, ref.Resource, resourceID) {
				return granted(ref)
			}
		}
	}

	return domain.Deny(refs[0].Name())
}

// GetAccessScope pre-resolves the widest data scope the caller qualifies for
// on a resource/action pair. Broadest first, so the resulting filter exposes
// everything the caller may list.
func (s *AuthorizationService) GetAccessScope(ctx context.Context, uctx *domain.UserContext, resource string, action domain.Action) (domain.AccessScope, error) {
	if uctx == nil {
		return domain.AccessScope{}, fmt.Errorf("user context is required")
	}

	base, err := domain.ParsePermissionName(fmt.Sprintf("%s:%s:%s", resource, action, domain.ScopeOwn))
	if err != nil {
		return domain.AccessScope{}, err
	}

	candidates := []domain.PermissionRef{
		base.WithScope(domain.ScopeAll),
		base.WithScope(domain.ScopeOrganization),
		base, // own
	}

	for _, ref := range candidates {
		decision := s.decide(ctx, uctx, []domain.PermissionRef{ref}, nil, nil)
		if !decision.Granted {
			continue
		}
		s.record(ctx, uctx, decision, nil, nil)
		scope := domain.AccessScope{Scope: decision.Scope, UserID: uctx.UserID}
		if decision.Scope == domain.ScopeOrganization {
			scope.OrganizationIDs = append([]string(nil), uctx.AccessibleOrganizations...)
		}
		return scope, nil
	}

	denied := domain.AccessScope{Denied: true, UserID: uctx.UserID}
	s.record(ctx, uctx, domain.Deny(candidates[0].Name()), nil, nil)
	return denied, nil
}

// verifyOwnership confirms the caller owns the concrete resource. Ownership of
// a concrete resource belongs to the resource service holding it; without a
// resolver, or without a resource id, verification stays delegated and the
// grant stands. A resolver failure fails closed.
func (s *AuthorizationService) verifyOwnership(ctx context.Context, uctx *domain.UserContext, resource string, resourceID *string) bool {
	if resourceID == nil || s.ownership == nil {
		return true
	}

	ownerID, err := s.ownership.ResolveOwner(ctx, resource, *resourceID)
	if err != nil {
		s.logger.Warn("ownership resolution failed, denying",
			zap.String("resource", resource),
			zap.String("resource_id", *resourceID),
			zap.Error(err),
		)
		return false
	}

	return ownerID == uctx.UserID
}

func granted(ref domain.PermissionRef) domain.AccessDecision {
	return domain.AccessDecision{
		Granted:    true,
		Permission: ref.Name(),
		Scope:      ref.Scope,
		Reason:     domain.ReasonGranted,
	}
}

// record emits the decision to the audit sink. Failures degrade to a warning;
// they never block or change the decision.
func (s *AuthorizationService) record(ctx context.Context, uctx *domain.UserContext, decision domain.AccessDecision, resourceID, organizationID *string) {
	if s.metrics != nil {
		s.metrics.ObserveDecision(decision.Granted, decision.Scope)
	}
	if s.audit == nil {
		return
	}

	record := domain.AuditRecord{
		Actor:          uctx.UserID,
		Permission:     decision.Permission,
		ResourceID:     resourceID,
		OrganizationID: organizationID,
		Granted:        decision.Granted,
		Scope:          decision.Scope,
		Reason:         decision.Reason,
		DecidedAt:      s.now(),
	}

	if err := s.audit.Record(ctx, record); err != nil {
		s.logger.Warn("audit sink degraded, decision not recorded",
			zap.String("actor", record.Actor),
			zap.String("permission", record.Permission),
			zap.Bool("granted", record.Granted),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.ObserveAuditFailure()
		}
	}
}
