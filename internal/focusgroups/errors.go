package focusgroups

import (
	"errors"

	"github.com/bebusy/backend/internal/auth"
)

var (
	ErrUnauthenticated    = auth.ErrUnauthenticated
	ErrFocusGroupNotFound = errors.New("focus group not found")
	ErrAlreadyMember      = errors.New("already a member of this focus group")
)

// CapacityError is returned when the store rejected an active membership because the group filled
// up between the routing read and the insert. Message is the store's text, unmodified.
type CapacityError struct {
	Message string
}

func (e *CapacityError) Error() string { return e.Message }

// IsCapacityError reports whether err is a CapacityError.
func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}
