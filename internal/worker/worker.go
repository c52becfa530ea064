package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/groups"
	"github.com/bebusy/backend/pkg/queue"
)

// JobQueue is the queue surface the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// SeatStore applies and checks group seats.
type SeatStore interface {
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	ShouldBeSeated(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// ChatBindingProcessor replays chat bind/unbind writes that failed in the request path.
// Each job re-checks current focus-group membership, so replays converge on the live state
// no matter how late or how often they run.
type ChatBindingProcessor struct {
	store       SeatStore
	queue       JobQueue
	logger      *zap.Logger
	pollTimeout time.Duration
	backoff     time.Duration
}

// NewChatBindingProcessor creates a chat-binding processor.
func NewChatBindingProcessor(store SeatStore, q JobQueue, logger *zap.Logger) *ChatBindingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatBindingProcessor{
		store:       store,
		queue:       q,
		logger:      logger,
		pollTimeout: 5 * time.Second,
		backoff:     queue.RetryBackoff,
	}
}

// Process executes one chat-binding job.
func (p *ChatBindingProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.ChatBinding()
	if err != nil {
		return err
	}
	seated, err := p.store.ShouldBeSeated(ctx, payload.GroupID, payload.UserID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}

	log := p.logger.With(
		zap.String("job_id", job.ID),
		zap.String("group_id", payload.GroupID.String()),
		zap.String("user_id", payload.UserID.String()))

	switch job.Type {
	case queue.JobTypeChatBind:
		if !seated {
			log.Info("bind skipped; member no longer active")
			return nil
		}
		err = p.store.AddMember(ctx, payload.GroupID, payload.UserID)
		if errors.Is(err, groups.ErrGroupNotFound) {
			log.Warn("bind dropped; group deleted")
			return nil
		}
	case queue.JobTypeChatUnbind:
		if seated {
			log.Info("unbind skipped; member rejoined")
			return nil
		}
		err = p.store.RemoveMember(ctx, payload.GroupID, payload.UserID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", job.Type, err)
	}
	log.Info("chat binding replayed", zap.String("type", string(job.Type)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ChatBindingProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("chat binding worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ChatBindingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
