package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAvatarExtension(t *testing.T) {
	ext, ok := AvatarExtension(" IMAGE/PNG ")
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	_, ok = AvatarExtension("video/mp4")
	assert.False(t, ok)
}

func TestAvatarKey_Ownership(t *testing.T) {
	owner := uuid.New()
	key := AvatarKey(owner, ".jpg")

	assert.True(t, strings.HasPrefix(key, "avatars/"+owner.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.True(t, OwnsAvatarKey(owner, key))
	assert.False(t, OwnsAvatarKey(uuid.New(), key))
	assert.False(t, OwnsAvatarKey(owner, "avatars/"+owner.String()+"/../other/x.jpg"))
}

func TestPresignExpire_Default(t *testing.T) {
	s := &S3{cfg: S3Config{}}
	assert.Equal(t, 15*time.Minute, s.PresignExpire())

	s.cfg.PresignExpireMinutes = 3
	assert.Equal(t, 3*time.Minute, s.PresignExpire())
}
