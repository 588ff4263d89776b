package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/config"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/utils"
)

const secret = "test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCtx(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func bearer(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func captureCaller(got *policy.Caller) echo.HandlerFunc {
	return func(c echo.Context) error {
		*got = CallerFrom(c)
		return c.NoContent(http.StatusOK)
	}
}

func TestJWTAuth_NoHeaderIsAnonymous(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/books")
	var got policy.Caller
	require.NoError(t, JWTAuth(secret)(captureCaller(&got))(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.Authenticated())
}

func TestJWTAuth_ValidToken(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/profile")
	c.Request().Header.Set(echo.HeaderAuthorization, bearer(t, 42, model.RoleStaff))
	var got policy.Caller
	require.NoError(t, JWTAuth(secret)(captureCaller(&got))(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, policy.Caller{UserID: 42, Staff: true}, got)
}

func TestJWTAuth_RejectsBadTokens(t *testing.T) {
	for name, header := range map[string]string{
		"garbage":      "Bearer not-a-jwt",
		"wrong scheme": "Basic abc",
		"empty bearer": "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newCtx(http.MethodGet, "/profile")
			c.Request().Header.Set(echo.HeaderAuthorization, header)
			called := false
			h := JWTAuth(secret)(func(c echo.Context) error { called = true; return nil })
			require.NoError(t, h(c))

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"token_not_valid"`)
		})
	}
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/profile")
	tok, err := utils.NewAccessToken("other", 1, model.RoleMember, 5, time.Now())
	require.NoError(t, err)
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	require.NoError(t, JWTAuth(secret)(func(c echo.Context) error { return nil })(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnforce(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	cases := []struct {
		name   string
		p      policy.Policy
		method string
		caller policy.Caller
		want   int
	}{
		{"anon read of staff-gated", policy.StaffGatedWrite, http.MethodGet, policy.Caller{}, http.StatusNoContent},
		{"anon write of staff-gated", policy.StaffGatedWrite, http.MethodDelete, policy.Caller{}, http.StatusUnauthorized},
		{"member write of staff-gated", policy.StaffGatedWrite, http.MethodDelete, policy.Caller{UserID: 3}, http.StatusForbidden},
		{"staff write of staff-gated", policy.StaffGatedWrite, http.MethodDelete, policy.Caller{UserID: 1, Staff: true}, http.StatusNoContent},
		{"member admin-only", policy.AdminOnly, http.MethodGet, policy.Caller{UserID: 3}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newCtx(tc.method, "/x")
			if tc.caller.Authenticated() {
				c.Set(ctxUserID, tc.caller.UserID)
				role := model.RoleMember
				if tc.caller.Staff {
					role = model.RoleStaff
				}
				c.Set(ctxRole, role)
			}
			require.NoError(t, Enforce(tc.p)(ok)(c))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRateKey(t *testing.T) {
	c, _ := newCtx(http.MethodPost, "/transactions")
	c.SetPath("/transactions")
	c.Request().RemoteAddr = "10.0.0.9:5555"

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.9:user:anon:route:POST /transactions", rateKey(cfg, c))

	c.Set(ctxUserID, uint64(12))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", rateKey(cfg, c))
}

func TestParseBucket(t *testing.T) {
	allowed, remaining, retry, ok := parseBucket([]interface{}{int64(1), int64(4), int64(0)})
	require.True(t, ok)
	assert.True(t, allowed)
	assert.EqualValues(t, 4, remaining)
	assert.Zero(t, retry)

	_, _, _, ok = parseBucket("nope")
	assert.False(t, ok)

	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 2, retryAfterSeconds(1500))
}

func TestNewTokenBucket_DisabledPassesThrough(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "/books")
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, discard)
	require.NoError(t, mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	c, _ := newCtx(http.MethodGet, "/books/9")
	c.Set(ctxUserID, uint64(5))
	h := RequestLogger(log)(func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	require.NoError(t, h(c))

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"path":"/books/9"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"user_id":5`)
}

func TestRequestLogger_RendersHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	c, rec := newCtx(http.MethodGet, "/boom")
	h := RequestLogger(log)(func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}
