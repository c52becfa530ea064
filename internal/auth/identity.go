package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bebusy/backend/internal/models"
)

var (
	// ErrUnauthenticated means no identity could be resolved for the caller.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrBanned means the caller is currently banned.
	ErrBanned = errors.New("account is banned")
)

// Identity is the acting user with a freshly resolved role.
type Identity struct {
	UserID      uuid.UUID   `json:"user_id"`
	Role        models.Role `json:"role"`
	BannedUntil *time.Time  `json:"banned_until,omitempty"`
}

// IsBanned reports whether the identity is under an active ban.
func (i Identity) IsBanned() bool {
	return i.Role == models.RoleBanned
}

// IdentityResolver resolves the current role of a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Identity, error)
}
