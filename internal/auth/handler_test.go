package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/utils"
)

var profileRowColumns = []string{"id", "email", "password_hash", "username", "full_name", "avatar_key",
	"role", "banned_until", "ban_reason", "created_at", "updated_at"}

func setupRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface, *JWTService) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	gin.SetMode(gin.TestMode)
	jwtSvc := NewJWTService("test-secret", 1)
	h := NewHandler(NewRepository(mockPool), jwtSvc, nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r, mockPool, jwtSvc
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_RegisterValidation(t *testing.T) {
	r, _, _ := setupRouter(t)
	assert.Equal(t, http.StatusBadRequest, postJSON(r, "/auth/register", `{"email":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		postJSON(r, "/auth/register", `{"email":"a@b.co","password":"short","username":"ab"}`).Code)
}

func TestHandler_RegisterConflict(t *testing.T) {
	r, mockPool, _ := setupRouter(t)
	mockPool.ExpectQuery("INSERT INTO profiles").
		WithArgs("a@b.co", pgxmock.AnyArg(), "alice", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "profiles_email_key"})

	w := postJSON(r, "/auth/register", `{"email":" A@b.co ","password":"longenough","username":"alice"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestHandler_Login(t *testing.T) {
	r, mockPool, jwtSvc := setupRouter(t)
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	id := uuid.New()
	now := time.Now()

	profileRow := func() *pgxmock.Rows {
		return pgxmock.NewRows(profileRowColumns).
			AddRow(id, "a@b.co", hash, "alice", "Alice", (*string)(nil), models.RoleUser,
				(*time.Time)(nil), (*string)(nil), now, now)
	}

	mockPool.ExpectQuery("FROM profiles WHERE email").WithArgs("a@b.co").WillReturnRows(profileRow())
	w := postJSON(r, "/auth/login", `{"email":"a@b.co","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Data.Profile.Username)
	token := body.Data.Token
	got, err := jwtSvc.UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	mockPool.ExpectQuery("FROM profiles WHERE email").WithArgs("a@b.co").WillReturnRows(profileRow())
	assert.Equal(t, http.StatusUnauthorized, postJSON(r, "/auth/login", `{"email":"a@b.co","password":"wrong"}`).Code)

	mockPool.ExpectQuery("FROM profiles WHERE email").WithArgs("x@b.co").
		WillReturnRows(pgxmock.NewRows(profileRowColumns))
	assert.Equal(t, http.StatusUnauthorized, postJSON(r, "/auth/login", `{"email":"x@b.co","password":"whatever"}`).Code)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
