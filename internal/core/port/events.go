package port

import (
	"context"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// EventPublisher broadcasts invalidation-relevant mutations to peer instances.
type EventPublisher interface {
	PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error
	PublishUserAccessChanged(ctx context.Context, event domain.UserAccessChangedEvent) error
}
