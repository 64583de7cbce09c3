package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scope bounds the reach of a permission grant.
type Scope string

const (
	// ScopeOwn limits the grant to resources owned by the acting user.
	ScopeOwn Scope = "own"
	// ScopeOrganization limits the grant to the user's accessible organizations.
	ScopeOrganization Scope = "organization"
	// ScopeAll grants unrestricted reach across tenants.
	ScopeAll Scope = "all"
)

// Action is the operation segment of a permission name.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
	ActionExport Action = "export"
)

var (
	// ErrInvalidPermissionName indicates a name that does not form a
	// resource:action:scope triple.
	ErrInvalidPermissionName = errors.New("invalid permission name")
	// ErrUnknownScope indicates a scope segment outside the closed set.
	ErrUnknownScope = errors.New("unknown permission scope")
	// ErrUnknownAction indicates an action segment outside the closed set.
	ErrUnknownAction = errors.New("unknown permission action")
)

// ParseScope validates a raw scope segment.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeOwn, ScopeOrganization, ScopeAll:
		return Scope(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, raw)
	}
}

// ParseAction validates a raw action segment.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage, ActionExport:
		return Action(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

// PermissionRef is a parsed resource:action:scope triple. Names are parsed
// once at the boundary; everything past it works with typed refs.
type PermissionRef struct {
	Resource string
	Action   Action
	Scope    Scope
}

// ParsePermissionName parses a canonical permission name into its triple.
func ParsePermissionName(name string) (PermissionRef, error) {
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return PermissionRef{}, fmt.Errorf("%w: %q", ErrInvalidPermissionName, name)
	}

	resource := parts[0]
	if resource == "" || resource != strings.ToLower(resource) {
		return PermissionRef{}, fmt.Errorf("%w: %q", ErrInvalidPermissionName, name)
	}

	action, err := ParseAction(parts[1])
	if err != nil {
		return PermissionRef{}, err
	}

	scope, err := ParseScope(parts[2])
	if err != nil {
		return PermissionRef{}, err
	}

	return PermissionRef{Resource: resource, Action: action, Scope: scope}, nil
}

// Name renders the canonical resource:action:scope form.
func (r PermissionRef) Name() string {
	return fmt.Sprintf("%s:%s:%s", r.Resource, r.Action, r.Scope)
}

// WithScope returns a copy of the ref at a different scope.
func (r PermissionRef) WithScope(scope Scope) PermissionRef {
	r.Scope = scope
	return r
}

// Permission is a catalog entry.
type Permission struct {
	ID          string
	Name        string
	Resource    string
	Action      Action
	Scope       Scope
	Description *string
	Active      bool
	CreatedAt   time.Time
}

// NewPermission constructs an active catalog entry with its canonical name.
func NewPermission(id, resource string, action Action, scope Scope) Permission {
	ref := PermissionRef{Resource: resource, Action: action, Scope: scope}
	return Permission{
		ID:       id,
		Name:     ref.Name(),
		Resource: resource,
		Action:   action,
		Scope:    scope,
		Active:   true,
	}
}

// PermissionSet is a deduplicated set of canonical permission names. The zero
// value is an empty set.
type PermissionSet struct {
	names map[string]struct{}
}

// NewPermissionSet builds a set from the given names.
func NewPermissionSet(names ...string) PermissionSet {
	set := PermissionSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		set.names[name] = struct{}{}
	}
	return set
}

// Add inserts a name into the set.
func (s *PermissionSet) Add(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// Has reports whether the canonical name is present.
func (s PermissionSet) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// HasRef reports whether the ref's canonical name is present.
func (s PermissionSet) HasRef(ref PermissionRef) bool {
	return s.Has(ref.Name())
}

// Len returns the number of distinct permissions.
func (s PermissionSet) Len() int {
	return len(s.names)
}

// Names returns the members in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both sets hold the same members.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for name := range s.names {
		if _, ok := other.names[name]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of names.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of names into the set.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	s.names = make(map[string]struct{}, len(names))
	for _, name := range names {
		s.names[name] = struct{}{}
	}
	return nil
}
