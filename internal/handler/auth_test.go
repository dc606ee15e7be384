package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestAuthHandler(env *testEnv) *AuthHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthHandler(env.authSvc, nil, logger)
}

func tokenCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestHandleSignup_SetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	h := newTestAuthHandler(env)

	body := `{"email":"alice@example.com","nickname":"alice","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleSignup(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	cookie := tokenCookie(rr)
	if !assert.NotNil(t, cookie, "signup should set the token cookie") {
		return
	}
	// Cookie lifetime tracks the 24h JWT lifetime.
	assert.Equal(t, 24*60*60, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	_, err := env.tokens.Validate(cookie.Value)
	assert.NoError(t, err, "cookie should carry a valid token")
}

func TestHandleLogout_ClearsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	h := newTestAuthHandler(env)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rr := httptest.NewRecorder()
	h.HandleLogout(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	cookie := tokenCookie(rr)
	if assert.NotNil(t, cookie) {
		assert.Equal(t, -1, cookie.MaxAge)
		assert.Empty(t, cookie.Value)
	}
}
