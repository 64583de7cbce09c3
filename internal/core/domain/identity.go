package domain

import "time"

// UserStatus enumerates account lifecycle states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User carries the identity fields the authorization engine needs. Credential
// material lives with the identity collaborator, not here.
type User struct {
	ID          string
	Email       *string
	DisplayName string
	Status      UserStatus
	CreatedAt   time.Time
}

// IsActive reports whether the account may be authorized at all.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}
