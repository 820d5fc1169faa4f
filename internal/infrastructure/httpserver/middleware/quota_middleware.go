package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/helpers"
)

// QuotaMiddleware is the consultation gate: it bills one consultation per
// request on the routes it wraps and converts the verdict into the rate
// limit headers and error bodies the frontend understands.
type QuotaMiddleware struct {
	quotaService   ports.QuotaService
	logger         *logrus.Logger
	decisionsTotal *prometheus.CounterVec
	storeErrors    prometheus.Counter
}

func NewQuotaMiddleware(quotaService ports.QuotaService, logger *logrus.Logger, decisionsTotal *prometheus.CounterVec, storeErrors prometheus.Counter) *QuotaMiddleware {
	return &QuotaMiddleware{
		quotaService:   quotaService,
		logger:         logger,
		decisionsTotal: decisionsTotal,
		storeErrors:    storeErrors,
	}
}

// Gate consumes one consultation before the handler runs. resourceParam
// names the route parameter identifying the consulted resource.
func (m *QuotaMiddleware) Gate(resourceParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := helpers.GetIdentityFromContext(c)
			if err != nil {
				return err
			}
			if !identity.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"success": false,
					"error":   "IDENTIDADE_INVALIDA",
					"message": "Não foi possível identificar a origem da requisição",
				})
			}

			resourceID := c.Param(resourceParam)
			if resourceID == "" {
				resourceID = c.Path()
			}

			verdict, err := m.quotaService.Consume(c.Request().Context(), identity, resourceID)
			if err != nil {
				if errors.Is(err, quota.ErrStoreUnavailable) {
					if m.storeErrors != nil {
						m.storeErrors.Inc()
					}
					if m.logger != nil {
						m.logger.WithFields(logrus.Fields{"identity_key": identity.Key()}).WithError(err).Error("quota store unavailable, refusing request")
					}
					return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
						"success": false,
						"error":   "SERVICO_INDISPONIVEL",
						"message": "Serviço temporariamente indisponível. Tente novamente em instantes.",
					})
				}
				return err
			}

			setRateLimitHeaders(c, verdict)
			if m.decisionsTotal != nil {
				m.decisionsTotal.WithLabelValues(string(verdict.Class), strconv.FormatBool(verdict.Allowed)).Inc()
			}

			if !verdict.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"error":   "LIMITE_EXCEDIDO",
					"message": verdict.Message(),
					"limite": map[string]interface{}{
						"tipo":               verdict.Class,
						"limite_diario":      verdict.Limit,
						"consultas_hoje":     verdict.Count,
						"restantes":          verdict.Remaining,
						"reset_em":           verdict.ResetAt,
						"reset_em_formatado": quota.FormatUntilReset(time.Now(), verdict.ResetAt),
					},
				})
			}

			helpers.SetVerdict(c, verdict)
			return next(c)
		}
	}
}

// setRateLimitHeaders is applied to every gated response, allowed or not,
// so clients can display the remaining quota without an extra call.
func setRateLimitHeaders(c echo.Context, v quota.Verdict) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.ResetAt.Unix(), 10))
	h.Set("X-RateLimit-Type", string(v.Class))
}

// RequireAdmin protects the usage analytics endpoints.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !helpers.IsAdmin(c) {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}
