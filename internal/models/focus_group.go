package models

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus is a user's state within a focus group. Absence of a row means not a member.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipWaitlist MembershipStatus = "waitlist"
)

// FocusGroup is a capacity-limited mentorship cohort.
// AvailableSpots and IsFull are maintained by the store, never written by the application.
type FocusGroup struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	MentorID       *uuid.UUID `json:"mentor_id,omitempty"`
	MentorName     string     `json:"mentor_name"`
	TotalSpots     int        `json:"total_spots"`
	AvailableSpots int        `json:"available_spots"`
	IsFull         bool       `json:"is_full"`
	GroupID        *uuid.UUID `json:"group_id,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Tags           []string   `json:"tags"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Capacity is the routing view of a focus group.
type Capacity struct {
	AvailableSpots int        `json:"available_spots"`
	TotalSpots     int        `json:"total_spots"`
	IsFull         bool       `json:"is_full"`
	BoundGroupID   *uuid.UUID `json:"bound_group_id,omitempty"`
}

// HasRoom reports whether a non-staff applicant would be admitted as active.
func (c Capacity) HasRoom() bool {
	return !c.IsFull && c.AvailableSpots > 0
}

// FocusGroupMembership is one (focus group, user) row.
type FocusGroupMembership struct {
	FocusGroupID uuid.UUID        `json:"focus_group_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Status       MembershipStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// FocusGroupMember is a membership joined with profile details for listings.
type FocusGroupMember struct {
	UserID    uuid.UUID        `json:"user_id"`
	Username  string           `json:"username"`
	FullName  string           `json:"full_name"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
