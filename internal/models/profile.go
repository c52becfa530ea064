package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role on the platform.
type Role string

const (
	RoleUser   Role = "user"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
	RoleBanned Role = "banned"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleMentor, RoleAdmin, RoleBanned:
		return true
	}
	return false
}

// IsStaff reports whether the role bypasses focus-group capacity.
func (r Role) IsStaff() bool {
	return r == RoleMentor || r == RoleAdmin
}

// Profile is a platform user.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Password    string     `json:"-"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	AvatarKey   *string    `json:"avatar_key,omitempty"`
	Role        Role       `json:"role"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
	BanReason   *string    `json:"ban_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProfilePublic is Profile without sensitive fields for API responses.
type ProfilePublic struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarKey *string   `json:"avatar_key,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Profile to ProfilePublic.
func (p *Profile) ToPublic() ProfilePublic {
	return ProfilePublic{
		ID:        p.ID,
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarKey: p.AvatarKey,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
	}
}
