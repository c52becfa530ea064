package inbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/middleware"
	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/internal/realtime"
	"github.com/bebusy/backend/pkg/response"
)

// Store is the inbox read surface the handler needs.
type Store interface {
	Snapshot(ctx context.Context, userID uuid.UUID, today string) (realtime.Snapshot, error)
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	ListMessages(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func listLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

// Handler handles inbox endpoints. Single reads go through marker so connected sessions update
// before the write lands.
type Handler struct {
	store  Store
	marker realtime.ReadMarker
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an inbox handler. loc decides the check-in day.
func NewHandler(store Store, marker realtime.ReadMarker, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, marker: marker, loc: loc, now: time.Now, logger: logger}
}

// Counters handles GET /inbox/counters.
func (h *Handler) Counters(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	today := h.now().In(h.loc).Format("2006-01-02")
	snap, err := h.store.Snapshot(c.Request.Context(), userID, today)
	if err != nil {
		h.logger.Error("load inbox counters failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load counters")
		return
	}
	response.OK(c, realtime.Counters{
		UnreadMessages:      len(snap.UnreadMessageIDs),
		UnreadNotifications: len(snap.UnreadNotificationIDs),
		CheckedInToday:      snap.CheckedInToday,
	})
}

// ListMessages handles GET /messages.
func (h *Handler) ListMessages(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		response.BadRequest(c, "invalid limit")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListMessages(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list messages failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to list messages")
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	response.OK(c, list)
}

// ListNotifications handles GET /notifications.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		response.BadRequest(c, "invalid limit")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list notifications failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to list notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	response.OK(c, list)
}

// MarkMessageRead handles POST /messages/:id/read.
func (h *Handler) MarkMessageRead(c *gin.Context) {
	h.markRead(c, h.marker.MarkMessageRead)
}

// MarkNotificationRead handles POST /notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	h.markRead(c, h.marker.MarkNotificationRead)
}

func (h *Handler) markRead(c *gin.Context, mark func(ctx context.Context, userID, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	err = mark(c.Request.Context(), userID, id)
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrNotificationNotFound):
		response.NotFound(c, err.Error())
	default:
		h.logger.Error("mark read failed", zap.String("user_id", userID.String()),
			zap.String("id", id.String()), zap.Error(err))
		response.Internal(c, "failed to mark as read")
	}
}

// MarkAllNotificationsRead handles POST /notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	n, err := h.store.MarkAllNotificationsRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("mark all notifications read failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to mark notifications as read")
		return
	}
	response.OK(c, gin.H{"updated": n})
}
