package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freight-erp/internal/middleware"
	"freight-erp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserService struct {
	service.UserService
	revoked    []string
	bootstraps int
}

func (s *stubUserService) Login(_ context.Context, req service.LoginUserRequest) (*service.TokenResponse, error) {
	if req.Password != "correct-horse" {
		return nil, fmt.Errorf("%w: invalid email or password", service.ErrUnauthenticated)
	}
	return &service.TokenResponse{Token: "access-1", RefreshToken: "refresh-1"}, nil
}

func (s *stubUserService) RefreshToken(_ context.Context, req service.RefreshTokenRequest) (*service.TokenResponse, error) {
	if req.RefreshToken != "refresh-1" {
		return nil, fmt.Errorf("%w: invalid refresh token", service.ErrUnauthenticated)
	}
	return &service.TokenResponse{Token: "access-2", RefreshToken: "refresh-2"}, nil
}

func (s *stubUserService) Logout(_ context.Context, refreshToken string) error {
	s.revoked = append(s.revoked, refreshToken)
	return nil
}

func (s *stubUserService) BootstrapAdmin(_ context.Context, req service.CreateUserRequest) (*service.UserResponse, error) {
	s.bootstraps++
	if s.bootstraps > 1 {
		return nil, fmt.Errorf("%w: an admin account already exists", service.ErrConflict)
	}
	return &service.UserResponse{Username: req.Username, Role: req.Role}, nil
}

func setupUserRouter(users *stubUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := middleware.NewAuth(middleware.AuthConfig{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, stubProfiles{}, zerolog.Nop())
	r := gin.New()
	NewUserHandler(users, auth).RegisterRoutes(r.Group("/api"))
	return r
}

func post(r *gin.Engine, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestLoginSetsCookies(t *testing.T) {
	r := setupUserRouter(&stubUserService{})

	w := post(r, "/api/auth/login", `{"email":"fin@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	access, ok := cookieValue(w, "access_token")
	require.True(t, ok)
	assert.Equal(t, "access-1", access)

	w = post(r, "/api/auth/login", `{"email":"fin@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	_, ok = cookieValue(w, "access_token")
	assert.False(t, ok)

	w = post(r, "/api/auth/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshPrefersCookie(t *testing.T) {
	r := setupUserRouter(&stubUserService{})

	w := post(r, "/api/auth/refresh", `{"refresh_token":"stale"}`, &http.Cookie{Name: "refresh_token", Value: "refresh-1"})
	require.Equal(t, http.StatusOK, w.Code)
	refresh, _ := cookieValue(w, "refresh_token")
	assert.Equal(t, "refresh-2", refresh)

	w = post(r, "/api/auth/refresh", `{"refresh_token":"refresh-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/api/auth/refresh", `{"refresh_token":"used"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesAndClears(t *testing.T) {
	users := &stubUserService{}
	r := setupUserRouter(users)

	w := post(r, "/api/auth/logout", "", &http.Cookie{Name: "refresh_token", Value: "refresh-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"refresh-1"}, users.revoked)

	for _, c := range w.Result().Cookies() {
		assert.Empty(t, c.Value, c.Name)
		assert.Negative(t, c.MaxAge, c.Name)
	}
}

func TestBootstrapAdminOnlyOnce(t *testing.T) {
	r := setupUserRouter(&stubUserService{})
	body := `{"username":"root","email":"root@example.com","password":"longenough"}`

	assert.Equal(t, http.StatusCreated, post(r, "/api/auth/bootstrap", body).Code)
	assert.Equal(t, http.StatusConflict, post(r, "/api/auth/bootstrap", body).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/auth/bootstrap", `{"username":"root","email":"root@example.com","password":"short"}`).Code)
}
