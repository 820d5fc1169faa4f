package httpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/helpers"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/middleware"
	tmocks "github.com/licitafacil/api/test/mocks"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestIdentityMiddleware_AnonymousUsesRemoteAddr(t *testing.T) {
	e := echo.New()
	m := middleware.NewIdentityMiddleware(testSecret, false, logrus.New())
	h := m.ResolveIdentity()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	// Must be ignored when proxy headers are not trusted.
	req.Header.Set("X-Forwarded-For", "198.51.100.99")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h(c))

	identity, ok := helpers.GetIdentityRaw(c)
	require.True(t, ok)
	require.Nil(t, identity.UserID)
	require.Equal(t, "203.0.113.5", identity.IP)
}

func TestIdentityMiddleware_ProxyHeaderChain(t *testing.T) {
	e := echo.New()
	m := middleware.NewIdentityMiddleware(testSecret, true, logrus.New())
	h := m.ResolveIdentity()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, "198.51.100.1"},
		{"x-real-ip next", map[string]string{"X-Real-IP": "198.51.100.2", "X-Forwarded-For": "198.51.100.3"}, "198.51.100.2"},
		{"forwarded-for first hop", map[string]string{"X-Forwarded-For": "198.51.100.3, 10.0.0.1"}, "198.51.100.3"},
		{"garbage falls through", map[string]string{"CF-Connecting-IP": "not-an-ip"}, "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.5:54321"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, h(c))
			identity, _ := helpers.GetIdentityRaw(c)
			require.Equal(t, tt.want, identity.IP)
		})
	}
}

func TestIdentityMiddleware_ValidTokenSetsUserID(t *testing.T) {
	e := echo.New()
	m := middleware.NewIdentityMiddleware(testSecret, false, logrus.New())
	h := m.ResolveIdentity()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	req.Header.Set("Authorization", "Bearer "+signedToken(t, userID.String(), ""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h(c))
	identity, _ := helpers.GetIdentityRaw(c)
	require.NotNil(t, identity.UserID)
	require.Equal(t, userID, *identity.UserID)
	require.False(t, helpers.IsAdmin(c))
}

func TestIdentityMiddleware_BadTokenDowngradesToAnonymous(t *testing.T) {
	e := echo.New()
	m := middleware.NewIdentityMiddleware(testSecret, false, logrus.New())
	h := m.ResolveIdentity()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h(c))
	identity, _ := helpers.GetIdentityRaw(c)
	require.Nil(t, identity.UserID)
	require.Equal(t, "203.0.113.5", identity.IP)
}

func TestIdentityMiddleware_AdminRoleClaim(t *testing.T) {
	e := echo.New()
	m := middleware.NewIdentityMiddleware(testSecret, false, logrus.New())
	h := m.ResolveIdentity()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	req.Header.Set("Authorization", "Bearer "+signedToken(t, uuid.NewString(), "admin"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h(c))
	require.True(t, helpers.IsAdmin(c))
}

func gateContext(e *echo.Echo, identity *quota.Identity) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("pncpId")
	c.SetParamValues("00000000000000-1-000001/2025")
	if identity != nil {
		helpers.SetIdentity(c, *identity)
	}
	return c, rec
}

func TestQuotaMiddleware_AllowedSetsHeadersAndVerdict(t *testing.T) {
	e := echo.New()
	resetAt := time.Now().Add(20 * time.Hour)
	svc := &tmocks.QuotaServiceMock{ConsumeFn: func(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error) {
		return quota.Verdict{Allowed: true, Remaining: 3, Limit: 5, Count: 2, ResetAt: resetAt, Class: quota.ClassAnonymous}, nil
	}}
	m := middleware.NewQuotaMiddleware(svc, logrus.New(), nil, nil)
	h := m.Gate("pncpId")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := gateContext(e, &quota.Identity{IP: "203.0.113.5"})
	require.NoError(t, h(c))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "ANONIMO", rec.Header().Get("X-RateLimit-Type"))
	require.Equal(t, fmt.Sprintf("%d", resetAt.Unix()), rec.Header().Get("X-RateLimit-Reset"))

	verdict, ok := helpers.GetVerdictRaw(c)
	require.True(t, ok)
	require.Equal(t, 3, verdict.Remaining)
}

func TestQuotaMiddleware_DeniedReturns429(t *testing.T) {
	e := echo.New()
	svc := &tmocks.QuotaServiceMock{ConsumeFn: func(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error) {
		return quota.Verdict{Allowed: false, Remaining: 0, Limit: 5, Count: 6, ResetAt: time.Now().Add(10 * time.Hour), Class: quota.ClassAnonymous}, nil
	}}
	m := middleware.NewQuotaMiddleware(svc, logrus.New(), nil, nil)
	handlerCalled := false
	h := m.Gate("pncpId")(func(c echo.Context) error { handlerCalled = true; return c.NoContent(http.StatusOK) })

	c, rec := gateContext(e, &quota.Identity{IP: "203.0.113.5"})
	require.NoError(t, h(c))

	require.False(t, handlerCalled)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, "LIMITE_EXCEDIDO", body["error"])
	limite, ok := body["limite"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(5), limite["limite_diario"])
	require.NotEmpty(t, limite["reset_em_formatado"])
}

func TestQuotaMiddleware_InvalidIdentityReturns400(t *testing.T) {
	e := echo.New()
	m := middleware.NewQuotaMiddleware(&tmocks.QuotaServiceMock{}, logrus.New(), nil, nil)
	h := m.Gate("pncpId")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := gateContext(e, &quota.Identity{})
	require.NoError(t, h(c))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "IDENTIDADE_INVALIDA", body["error"])
}

func TestQuotaMiddleware_StoreUnavailableReturns503(t *testing.T) {
	e := echo.New()
	svc := &tmocks.QuotaServiceMock{ConsumeFn: func(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error) {
		return quota.Verdict{}, fmt.Errorf("%w: down", quota.ErrStoreUnavailable)
	}}
	m := middleware.NewQuotaMiddleware(svc, logrus.New(), nil, nil)
	h := m.Gate("pncpId")(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := gateContext(e, &quota.Identity{IP: "203.0.113.5"})
	require.NoError(t, h(c))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	h := middleware.RequireAdmin()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h(c)
	require.Error(t, err)
	htErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, htErr.Code)

	helpers.SetIsAdmin(c, true)
	require.NoError(t, h(c))
}
