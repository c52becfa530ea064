package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/middleware"
	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/response"
	"github.com/bebusy/backend/pkg/storage"
)

// ProfileStore is the profile read/write surface the handler needs.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	SetAvatarKey(ctx context.Context, id uuid.UUID, key string) (*string, error)
}

// AvatarStorage issues avatar upload URLs.
type AvatarStorage interface {
	PresignAvatarUpload(ctx context.Context, key, contentType string) (string, error)
	PresignAvatarDownload(ctx context.Context, key string) (string, error)
	DeleteAvatar(ctx context.Context, key string) error
	PresignExpire() time.Duration
}

// BanRequest is the body for POST /admin/users/:id/ban.
type BanRequest struct {
	Until  *time.Time `json:"until"`
	Reason string     `json:"reason" binding:"max=500"`
}

// AvatarUploadRequest is the body for POST /me/avatar/upload-url.
type AvatarUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// AvatarUploadResponse tells the client where to PUT the avatar.
type AvatarUploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
	MaxBytes  int    `json:"max_bytes"`
}

// Handler handles profile and moderation endpoints.
type Handler struct {
	store   ProfileStore
	mod     *Moderator
	avatars AvatarStorage
	logger  *zap.Logger
}

// NewHandler creates a profiles handler. avatars may be nil when S3 is not configured.
func NewHandler(store ProfileStore, mod *Moderator, avatars AvatarStorage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, mod: mod, avatars: avatars, logger: logger}
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.store.GetByID(c.Request.Context(), userID)
	if errors.Is(err, ErrProfileNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("get profile failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, p)
}

// Role handles GET /me/role.
func (h *Handler) Role(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	response.OK(c, ident)
}

// Ban handles POST /admin/users/:id/ban.
func (h *Handler) Ban(c *gin.Context) {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	if err := h.mod.Ban(c.Request.Context(), actor, target, req.Until, req.Reason); err != nil {
		h.writeModerationError(c, target, err)
		return
	}
	response.NoContent(c)
}

// Unban handles DELETE /admin/users/:id/ban.
func (h *Handler) Unban(c *gin.Context) {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actor, _ := middleware.IdentityFrom(c)
	if err := h.mod.Unban(c.Request.Context(), actor, target); err != nil {
		h.writeModerationError(c, target, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeModerationError(c *gin.Context, target uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrProtectedTarget):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrProfileNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidBan):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("moderation failed", zap.String("user_id", target.String()), zap.Error(err))
		response.Internal(c, "moderation failed")
	}
}

// AvatarURL handles GET /me/avatar-url.
func (h *Handler) AvatarURL(c *gin.Context) {
	if h.avatars == nil {
		response.ServiceUnavailable(c, "avatar storage not configured")
		return
	}
	ctx := c.Request.Context()
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.store.GetByID(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("get profile failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	if p.AvatarKey == nil {
		response.NotFound(c, "no avatar")
		return
	}
	url, err := h.avatars.PresignAvatarDownload(ctx, *p.AvatarKey)
	if err != nil {
		h.logger.Error("presign avatar download failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to create avatar url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in": int(h.avatars.PresignExpire().Seconds())})
}

// AvatarUploadURL handles POST /me/avatar/upload-url.
func (h *Handler) AvatarUploadURL(c *gin.Context) {
	if h.avatars == nil {
		response.ServiceUnavailable(c, "avatar storage not configured")
		return
	}
	var req AvatarUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ext, ok := storage.AvatarExtension(req.ContentType)
	if !ok {
		response.BadRequest(c, ErrInvalidAvatar.Error())
		return
	}

	ctx := c.Request.Context()
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	key := storage.AvatarKey(userID, ext)
	url, err := h.avatars.PresignAvatarUpload(ctx, key, req.ContentType)
	if err != nil {
		h.logger.Error("presign avatar failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	prev, err := h.store.SetAvatarKey(ctx, userID, key)
	if err != nil {
		h.logger.Error("store avatar key failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to store avatar")
		return
	}
	if prev != nil && *prev != key && storage.OwnsAvatarKey(userID, *prev) {
		if err := h.avatars.DeleteAvatar(ctx, *prev); err != nil {
			h.logger.Warn("delete previous avatar failed", zap.String("key", *prev), zap.Error(err))
		}
	}
	response.OK(c, AvatarUploadResponse{
		UploadURL: url,
		Key:       key,
		ExpiresIn: int(h.avatars.PresignExpire().Seconds()),
		MaxBytes:  storage.MaxAvatarSize,
	})
}
