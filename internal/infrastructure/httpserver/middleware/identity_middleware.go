package middleware

import (
	"net"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/helpers"
)

// IdentityMiddleware resolves who is making the request. An authenticated
// caller is identified by the JWT subject; everyone else by client IP.
// A bad token downgrades to anonymous instead of rejecting, so expired
// sessions keep the free tier working.
type IdentityMiddleware struct {
	jwtSecret         string
	trustProxyHeaders bool
	logger            *logrus.Logger
}

func NewIdentityMiddleware(jwtSecret string, trustProxyHeaders bool, logger *logrus.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{jwtSecret: jwtSecret, trustProxyHeaders: trustProxyHeaders, logger: logger}
}

// ResolveIdentity sets the caller identity on every request.
func (m *IdentityMiddleware) ResolveIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := quota.Identity{
				IP:        m.clientIP(c),
				UserAgent: c.Request().UserAgent(),
			}

			if userID, admin, ok := m.parseToken(c); ok {
				identity.UserID = &userID
				helpers.SetIsAdmin(c, admin)
			}

			helpers.SetIdentity(c, identity)
			return next(c)
		}
	}
}

// parseToken extracts the user id from a Bearer token. Returns ok=false
// for missing, malformed or expired tokens.
func (m *IdentityMiddleware) parseToken(c echo.Context) (uuid.UUID, bool, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return uuid.Nil, false, false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		if m.logger != nil {
			m.logger.WithFields(logrus.Fields{"ip": c.RealIP()}).WithError(err).Debug("invalid token, treating request as anonymous")
		}
		return uuid.Nil, false, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false, false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, false, false
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false, false
	}

	admin := false
	if role, ok := claims["role"].(string); ok && role == "admin" {
		admin = true
	}
	return userID, admin, true
}

// clientIP resolves the client address. Proxy headers are consulted in
// order of trust (Cloudflare first) and only when the deployment declares
// a proxy in front; otherwise the socket address wins.
func (m *IdentityMiddleware) clientIP(c echo.Context) string {
	if m.trustProxyHeaders {
		if ip := validIP(c.Request().Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		if ip := validIP(c.Request().Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if fwd := c.Request().Header.Get("X-Forwarded-For"); fwd != "" {
			first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
			if ip := validIP(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return validIP(c.Request().RemoteAddr)
	}
	return validIP(host)
}

func validIP(s string) string {
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}
