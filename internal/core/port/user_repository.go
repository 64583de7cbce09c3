package port

import (
	"context"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// UserRepository resolves identity records for context building.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
