package checkins

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/middleware"
	"github.com/bebusy/backend/pkg/response"
)

// CheckInRequest is the body for POST /checkins.
type CheckInRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// Handler handles check-in endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a check-ins handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CheckIn handles POST /checkins.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ci, err := h.svc.CheckIn(c.Request.Context(), userID, req.Note)
	if err != nil {
		h.logger.Error("check-in failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to check in")
		return
	}
	response.Created(c, ci)
}

// Streak handles GET /checkins/streak.
func (h *Handler) Streak(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	st, err := h.svc.Streak(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("streak failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load streak")
		return
	}
	response.OK(c, st)
}
