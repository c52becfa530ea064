package profiles

import (
	"errors"

	"github.com/bebusy/backend/internal/auth"
)

var (
	// ErrUnauthenticated is returned when the caller has no resolvable profile.
	ErrUnauthenticated = auth.ErrUnauthenticated
	ErrProfileNotFound = errors.New("profile not found")
	ErrForbidden       = errors.New("only admins may moderate users")
	ErrProtectedTarget = errors.New("admins and self cannot be banned")
	ErrInvalidBan      = errors.New("ban expiry must be in the future")
	ErrInvalidAvatar   = errors.New("unsupported avatar content type")
)
