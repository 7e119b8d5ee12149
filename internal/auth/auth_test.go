package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav-trails/backend/config"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate("ops@manav.in", "admin")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@manav.in", claims.Email)
	assert.Equal(t, "admin", claims.Role)

	_, err = NewJWTService("other", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func login(t *testing.T, h *Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	svc := NewJWTService("secret", 1)
	h := NewHandler(config.AdminConfig{Email: "ops@manav.in", PasswordHash: hash}, svc, nil)

	rec := login(t, h, "OPS@manav.in", "correct horse")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	claims, err := svc.Validate(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	assert.Equal(t, http.StatusUnauthorized, login(t, h, "ops@manav.in", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, h, "someone@manav.in", "correct horse").Code)
}

func TestLogin_NotConfigured(t *testing.T) {
	h := NewHandler(config.AdminConfig{}, NewJWTService("secret", 1), nil)
	assert.Equal(t, http.StatusServiceUnavailable, login(t, h, "ops@manav.in", "x").Code)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("S3cret", hash))
	assert.False(t, CheckPassword("s3cret", "not-a-bcrypt-hash"))
}
