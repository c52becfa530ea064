package focusgroups

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/middleware"
	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/response"
)

// Handler handles focus-group HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a focus-group handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ApplyResponse is the result of POST /focus-groups/:id/apply.
type ApplyResponse struct {
	FocusGroupID uuid.UUID               `json:"focus_group_id"`
	Status       models.MembershipStatus `json:"status"`
}

// MembershipResponse is the result of GET /focus-groups/:id/membership.
type MembershipResponse struct {
	IsMember   bool                         `json:"is_member"`
	Membership *models.FocusGroupMembership `json:"membership,omitempty"`
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, auth.ErrBanned):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrFocusGroupNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyMember):
		response.Conflict(c, err.Error())
	case IsCapacityError(err):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, op+" failed")
	}
}

func focusGroupID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid focus group id")
		return uuid.Nil, false
	}
	return id, true
}

// Get handles GET /focus-groups/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := focusGroupID(c)
	if !ok {
		return
	}
	fg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get focus group", err)
		return
	}
	response.OK(c, fg)
}

// ListMembers handles GET /focus-groups/:id/members?status=active|waitlist.
func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := focusGroupID(c)
	if !ok {
		return
	}
	var status *models.MembershipStatus
	if s := c.Query("status"); s != "" {
		st := models.MembershipStatus(s)
		if st != models.MembershipActive && st != models.MembershipWaitlist {
			response.BadRequest(c, "status must be active or waitlist")
			return
		}
		status = &st
	}
	list, err := h.svc.ListMembers(c.Request.Context(), id, status)
	if err != nil {
		h.writeError(c, "list members", err)
		return
	}
	if list == nil {
		list = []models.FocusGroupMember{}
	}
	response.OK(c, list)
}

// Apply handles POST /focus-groups/:id/apply.
func (h *Handler) Apply(c *gin.Context) {
	id, ok := focusGroupID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	status, err := h.svc.Apply(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, "apply", err)
		return
	}
	response.Created(c, ApplyResponse{FocusGroupID: id, Status: status})
}

// Leave handles DELETE /focus-groups/:id/membership.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := focusGroupID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.svc.Leave(c.Request.Context(), userID, id); err != nil {
		h.writeError(c, "leave", err)
		return
	}
	response.NoContent(c)
}

// MyMembership handles GET /focus-groups/:id/membership.
func (h *Handler) MyMembership(c *gin.Context) {
	id, ok := focusGroupID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	m, err := h.svc.MyStatus(c.Request.Context(), userID, id)
	if err != nil {
		h.writeError(c, "get membership", err)
		return
	}
	response.OK(c, MembershipResponse{IsMember: m != nil, Membership: m})
}
