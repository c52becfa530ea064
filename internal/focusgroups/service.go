package focusgroups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

// EventTopic is the in-process bus topic for membership changes.
const EventTopic = "focus_group_membership"

// Store is the persistence the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.FocusGroup, error)
	GetCapacity(ctx context.Context, id uuid.UUID) (models.Capacity, error)
	FindMembership(ctx context.Context, focusGroupID, userID uuid.UUID) (*models.FocusGroupMembership, error)
	InsertMembership(ctx context.Context, focusGroupID, userID uuid.UUID, status models.MembershipStatus) (*models.FocusGroupMembership, error)
	DeleteMembership(ctx context.Context, focusGroupID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, focusGroupID uuid.UUID, status *models.MembershipStatus) ([]models.FocusGroupMember, error)
}

// ChatBinder mirrors active membership into the bound discussion group.
type ChatBinder interface {
	Bind(ctx context.Context, groupID, userID uuid.UUID) error
	Unbind(ctx context.Context, groupID, userID uuid.UUID) error
}

// EventPublisher fans membership changes out in-process.
type EventPublisher interface {
	Publish(topic string, payload any)
}

// MembershipEvent is published after every successful Apply or Leave.
type MembershipEvent struct {
	FocusGroupID uuid.UUID               `json:"focus_group_id"`
	UserID       uuid.UUID               `json:"user_id"`
	Action       string                  `json:"action"`
	Status       models.MembershipStatus `json:"status"`
}

// Service runs the apply/leave membership workflow.
type Service struct {
	store    Store
	resolver auth.IdentityResolver
	binder   ChatBinder
	events   EventPublisher
	logger   *zap.Logger
}

// NewService creates a Service. events may be nil.
func NewService(store Store, resolver auth.IdentityResolver, binder ChatBinder, events EventPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, resolver: resolver, binder: binder, events: events, logger: logger}
}

// Apply joins userID to a focus group as active or waitlisted.
//
// Staff (mentor/admin) are always admitted as active. Everyone else is waitlisted when the group
// reads as full. The read is only a routing hint: the store rejects an active row that would exceed
// capacity, and that rejection comes back as *CapacityError.
func (s *Service) Apply(ctx context.Context, userID, focusGroupID uuid.UUID) (models.MembershipStatus, error) {
	ident, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if ident.IsBanned() {
		return "", auth.ErrBanned
	}

	existing, err := s.store.FindMembership(ctx, focusGroupID, userID)
	if err != nil {
		return "", fmt.Errorf("find membership: %w", err)
	}
	if existing != nil {
		return "", ErrAlreadyMember
	}

	capacity, err := s.store.GetCapacity(ctx, focusGroupID)
	if err != nil {
		if errors.Is(err, ErrFocusGroupNotFound) {
			return "", err
		}
		return "", fmt.Errorf("get capacity: %w", err)
	}

	status := routeStatus(ident.Role, capacity)
	if _, err := s.store.InsertMembership(ctx, focusGroupID, userID, status); err != nil {
		return "", err
	}

	if status == models.MembershipActive && capacity.BoundGroupID != nil {
		if err := s.binder.Bind(ctx, *capacity.BoundGroupID, userID); err != nil {
			s.logger.Warn("chat bind failed; membership kept",
				zap.String("focus_group_id", focusGroupID.String()),
				zap.String("group_id", capacity.BoundGroupID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}

	s.publish(MembershipEvent{FocusGroupID: focusGroupID, UserID: userID, Action: "applied", Status: status})
	return status, nil
}

func routeStatus(role models.Role, c models.Capacity) models.MembershipStatus {
	if role.IsStaff() || c.HasRoom() {
		return models.MembershipActive
	}
	return models.MembershipWaitlist
}

// Leave removes userID from a focus group. Leaving twice, or leaving a group that no longer
// exists, succeeds.
func (s *Service) Leave(ctx context.Context, userID, focusGroupID uuid.UUID) error {
	if _, err := s.resolver.Resolve(ctx, userID); err != nil {
		return err
	}

	var boundGroup *uuid.UUID
	capacity, err := s.store.GetCapacity(ctx, focusGroupID)
	switch {
	case err == nil:
		boundGroup = capacity.BoundGroupID
	case !errors.Is(err, ErrFocusGroupNotFound):
		return fmt.Errorf("get capacity: %w", err)
	}

	existing, err := s.store.FindMembership(ctx, focusGroupID, userID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}

	removed, err := s.store.DeleteMembership(ctx, focusGroupID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	// Unbind even without a membership row so a stale chat seat from an earlier
	// failed unbind is cleaned up.
	if boundGroup != nil {
		if err := s.binder.Unbind(ctx, *boundGroup, userID); err != nil {
			s.logger.Warn("chat unbind failed; leave kept",
				zap.String("focus_group_id", focusGroupID.String()),
				zap.String("group_id", boundGroup.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}

	if removed {
		ev := MembershipEvent{FocusGroupID: focusGroupID, UserID: userID, Action: "left"}
		if existing != nil {
			ev.Status = existing.Status
		}
		s.publish(ev)
	}
	return nil
}

func (s *Service) publish(ev MembershipEvent) {
	if s.events != nil {
		s.events.Publish(EventTopic, ev)
	}
}

// Get returns a focus group.
func (s *Service) Get(ctx context.Context, focusGroupID uuid.UUID) (*models.FocusGroup, error) {
	return s.store.GetByID(ctx, focusGroupID)
}

// ListMembers returns members, optionally filtered by status.
func (s *Service) ListMembers(ctx context.Context, focusGroupID uuid.UUID, status *models.MembershipStatus) ([]models.FocusGroupMember, error) {
	if _, err := s.store.GetCapacity(ctx, focusGroupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, focusGroupID, status)
}

// MyStatus returns the caller's membership, or nil if not a member.
func (s *Service) MyStatus(ctx context.Context, userID, focusGroupID uuid.UUID) (*models.FocusGroupMembership, error) {
	if _, err := s.store.GetCapacity(ctx, focusGroupID); err != nil {
		return nil, err
	}
	return s.store.FindMembership(ctx, focusGroupID, userID)
}
