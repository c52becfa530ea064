package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/pkg/queue"
)

// MemberStore is the group membership write surface.
type MemberStore interface {
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// Enqueuer accepts chat-binding repair jobs.
type Enqueuer interface {
	EnqueueChatBinding(ctx context.Context, typ queue.JobType, payload queue.ChatBindingPayload) error
}

// Binder mirrors focus-group membership into bound discussion groups. A failed write is
// handed to the outbox queue for the worker to replay, and the original error is returned.
type Binder struct {
	store  MemberStore
	outbox Enqueuer
	logger *zap.Logger
}

// NewBinder creates a Binder. outbox may be nil, in which case failures are only returned.
func NewBinder(store MemberStore, outbox Enqueuer, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{store: store, outbox: outbox, logger: logger}
}

// Bind seats userID in groupID.
func (b *Binder) Bind(ctx context.Context, groupID, userID uuid.UUID) error {
	err := b.store.AddMember(ctx, groupID, userID)
	if err == nil || errors.Is(err, ErrGroupNotFound) {
		return err
	}
	return b.enqueueRepair(ctx, queue.JobTypeChatBind, groupID, userID, err)
}

// Unbind removes userID from groupID.
func (b *Binder) Unbind(ctx context.Context, groupID, userID uuid.UUID) error {
	err := b.store.RemoveMember(ctx, groupID, userID)
	if err == nil {
		return nil
	}
	return b.enqueueRepair(ctx, queue.JobTypeChatUnbind, groupID, userID, err)
}

func (b *Binder) enqueueRepair(ctx context.Context, typ queue.JobType, groupID, userID uuid.UUID, cause error) error {
	if b.outbox == nil {
		return cause
	}
	payload := queue.ChatBindingPayload{GroupID: groupID, UserID: userID}
	// The request context may already be cancelled; the job must still be recorded.
	if err := b.outbox.EnqueueChatBinding(context.WithoutCancel(ctx), typ, payload); err != nil {
		b.logger.Error("enqueue chat binding failed",
			zap.String("type", string(typ)),
			zap.String("group_id", groupID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return fmt.Errorf("%w (outbox: %v)", cause, err)
	}
	return fmt.Errorf("%w (queued for retry)", cause)
}
