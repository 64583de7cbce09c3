package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

// Shared in-memory stubs for the authorization usecase tests.

type userRepoStub struct {
	users  map[string]domain.User
	getErr error
}

func (m *userRepoStub) GetByID(_ context.Context, id string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

type orgRepoStub struct {
	organizations map[string]domain.Organization
	memberships   map[string][]domain.UserOrganization
	descendants   map[string][]string
	accessibleErr error
}

func (m *orgRepoStub) Create(_ context.Context, organization domain.Organization) error {
	if m.organizations == nil {
		m.organizations = make(map[string]domain.Organization)
	}
	m.organizations[organization.ID] = organization
	return nil
}

func (m *orgRepoStub) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	if organization, ok := m.organizations[id]; ok {
		return &organization, nil
	}
	return nil, repository.ErrNotFound
}

func (m *orgRepoStub) Deactivate(_ context.Context, id string) error {
	organization, ok := m.organizations[id]
	if !ok {
		return repository.ErrNotFound
	}
	organization.Active = false
	m.organizations[id] = organization
	return nil
}

func (m *orgRepoStub) ListActiveMembershipsByUser(_ context.Context, userID string) ([]domain.UserOrganization, error) {
	return m.memberships[userID], nil
}

func (m *orgRepoStub) AccessibleSet(_ context.Context, rootIDs []string) ([]string, error) {
	if m.accessibleErr != nil {
		return nil, m.accessibleErr
	}
	seen := make(map[string]struct{})
	var resolved []string
	for _, root := range rootIDs {
		for _, id := range append([]string{root}, m.descendants[root]...) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			resolved = append(resolved, id)
		}
	}
	return resolved, nil
}

func (m *orgRepoStub) Descendants(_ context.Context, organizationID string) ([]string, error) {
	return m.descendants[organizationID], nil
}

type roleRepoStub struct {
	roles       map[string]domain.Role
	rolesByName map[string]domain.Role
	grants      map[string][]domain.RoleGrant
	userRoles   []domain.UserRole
	grantErr    error
	revoked     []string
}

func (m *roleRepoStub) Create(_ context.Context, role domain.Role) error {
	if m.roles == nil {
		m.roles = make(map[string]domain.Role)
	}
	if m.rolesByName == nil {
		m.rolesByName = make(map[string]domain.Role)
	}
	m.roles[role.ID] = role
	m.rolesByName[role.Name] = role
	return nil
}

func (m *roleRepoStub) GetByID(_ context.Context, id string) (*domain.Role, error) {
	if role, ok := m.roles[id]; ok {
		return &role, nil
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoStub) GetByName(_ context.Context, name string) (*domain.Role, error) {
	if role, ok := m.rolesByName[name]; ok {
		return &role, nil
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoStub) List(_ context.Context, filter domain.QueryFilter) ([]domain.Role, error) {
	if filter.DenyAll {
		return []domain.Role{}, nil
	}
	roles := make([]domain.Role, 0, len(m.roles))
	for _, role := range m.roles {
		if len(filter.OrganizationIDs) > 0 {
			if role.OrganizationID == nil || !containsString(filter.OrganizationIDs, *role.OrganizationID) {
				continue
			}
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *roleRepoStub) Update(_ context.Context, role domain.Role) error {
	if _, ok := m.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	m.roles[role.ID] = role
	return nil
}

func (m *roleRepoStub) Delete(_ context.Context, id string) error {
	role, ok := m.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolesByName, role.Name)
	return nil
}

func (m *roleRepoStub) Deactivate(_ context.Context, id string) error {
	role, ok := m.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	role.Active = false
	m.roles[id] = role
	return nil
}

func (m *roleRepoStub) AssignPermissions(_ context.Context, roleID string, permissionIDs []string) (int, error) {
	return len(permissionIDs), nil
}

func (m *roleRepoStub) RevokePermissions(_ context.Context, roleID string, permissionIDs []string) (int, error) {
	m.revoked = append(m.revoked, permissionIDs...)
	return len(permissionIDs), nil
}

func (m *roleRepoStub) GrantToUser(_ context.Context, grant domain.UserRole) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	m.userRoles = append(m.userRoles, grant)
	return nil
}

func (m *roleRepoStub) RevokeFromUser(_ context.Context, userID, roleID string, _ *string) error {
	for i, grant := range m.userRoles {
		if grant.UserID == userID && grant.RoleID == roleID {
			m.userRoles = append(m.userRoles[:i], m.userRoles[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *roleRepoStub) ListActiveGrantsByUser(_ context.Context, userID string, _ time.Time) ([]domain.RoleGrant, error) {
	return m.grants[userID], nil
}

type permRepoStub struct {
	byRole map[string][]domain.Permission
	seeded []domain.Permission
	// listByRoleCalls counts authoritative reads to observe cache behavior.
	listByRoleCalls int
}

func (m *permRepoStub) GetByName(_ context.Context, name string) (*domain.Permission, error) {
	for _, permissions := range m.byRole {
		for _, permission := range permissions {
			if permission.Name == name {
				return &permission, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (m *permRepoStub) List(_ context.Context) ([]domain.Permission, error) {
	var all []domain.Permission
	for _, permissions := range m.byRole {
		all = append(all, permissions...)
	}
	return all, nil
}

func (m *permRepoStub) ListByRole(_ context.Context, roleID string) ([]domain.Permission, error) {
	m.listByRoleCalls++
	return m.byRole[roleID], nil
}

func (m *permRepoStub) Seed(_ context.Context, permissions []domain.Permission) (int, error) {
	m.seeded = append(m.seeded, permissions...)
	return len(permissions), nil
}

type cacheStub struct {
	mu          sync.Mutex
	entries     map[string]domain.PermissionSet
	getErr      error
	setErr      error
	invalidated []string
	purged      int
}

func (m *cacheStub) Get(_ context.Context, roleID string) (domain.PermissionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.PermissionSet{}, m.getErr
	}
	if set, ok := m.entries[roleID]; ok {
		return set, nil
	}
	return domain.PermissionSet{}, repository.ErrNotFound
}

func (m *cacheStub) Set(_ context.Context, roleID string, permissions domain.PermissionSet, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.entries == nil {
		m.entries = make(map[string]domain.PermissionSet)
	}
	m.entries[roleID] = permissions
	return nil
}

func (m *cacheStub) Invalidate(_ context.Context, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, roleID)
	m.invalidated = append(m.invalidated, roleID)
	return nil
}

func (m *cacheStub) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.purged++
	return nil
}

func (m *cacheStub) Stats() port.CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return port.CacheStats{Size: len(m.entries)}
}

type ctxCacheStub struct {
	entries     map[string]*domain.UserContext
	invalidated []string
	purged      int
}

func ctxCacheKey(userID string, organizationID *string) string {
	if organizationID == nil {
		return userID
	}
	return userID + "|" + *organizationID
}

func (m *ctxCacheStub) Get(_ context.Context, userID string, organizationID *string) (*domain.UserContext, error) {
	if uctx, ok := m.entries[ctxCacheKey(userID, organizationID)]; ok {
		return uctx, nil
	}
	return nil, repository.ErrNotFound
}

func (m *ctxCacheStub) Set(_ context.Context, uctx *domain.UserContext, _ time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]*domain.UserContext)
	}
	m.entries[ctxCacheKey(uctx.UserID, uctx.CurrentOrganizationID)] = uctx
	return nil
}

func (m *ctxCacheStub) InvalidateUser(_ context.Context, userID string) error {
	for key := range m.entries {
		if key == userID || len(key) > len(userID) && key[:len(userID)+1] == userID+"|" {
			delete(m.entries, key)
		}
	}
	m.invalidated = append(m.invalidated, userID)
	return nil
}

func (m *ctxCacheStub) InvalidateAll(_ context.Context) error {
	m.entries = nil
	m.purged++
	return nil
}

type auditSinkStub struct {
	records   []domain.AuditRecord
	recordErr error
}

func (m *auditSinkStub) Record(_ context.Context, record domain.AuditRecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, record)
	return nil
}

type eventPublisherStub struct {
	roleEvents   []domain.RoleChangedEvent
	accessEvents []domain.UserAccessChangedEvent
}

func (m *eventPublisherStub) PublishRoleChanged(_ context.Context, event domain.RoleChangedEvent) error {
	m.roleEvents = append(m.roleEvents, event)
	return nil
}

func (m *eventPublisherStub) PublishUserAccessChanged(_ context.Context, event domain.UserAccessChangedEvent) error {
	m.accessEvents = append(m.accessEvents, event)
	return nil
}

type ownershipResolverStub struct {
	owners     map[string]string
	resolveErr error
}

func (m *ownershipResolverStub) ResolveOwner(_ context.Context, _ string, resourceID string) (string, error) {
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return m.owners[resourceID], nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

var (
	_ port.UserRepository         = (*userRepoStub)(nil)
	_ port.OrganizationRepository = (*orgRepoStub)(nil)
	_ port.RoleRepository         = (*roleRepoStub)(nil)
	_ port.PermissionRepository   = (*permRepoStub)(nil)
	_ port.RolePermissionCache    = (*cacheStub)(nil)
	_ port.UserContextCache       = (*ctxCacheStub)(nil)
	_ port.AuditSink              = (*auditSinkStub)(nil)
	_ port.EventPublisher         = (*eventPublisherStub)(nil)
	_ port.OwnershipResolver      = (*ownershipResolverStub)(nil)
)
