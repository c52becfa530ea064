package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is a user's daily accountability check-in. One per user per calendar day.
type CheckIn struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	CheckInDate time.Time `json:"check_in_date"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Streak summarises consecutive check-in days.
type Streak struct {
	Current        int  `json:"current"`
	CheckedInToday bool `json:"checked_in_today"`
}
