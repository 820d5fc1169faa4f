package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/helpers"
)

// getOwnLimits handles GET /api/v1/limites/me. Read-only: peeking at the
// remaining quota never consumes it.
func (s *Server) getOwnLimits(c echo.Context) error {
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

	verdict, err := s.quotaSvc.Check(c.Request().Context(), identity)
	if err != nil {
		s.logger.WithError(err).Error("failed to check quota")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check quota")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"limite": map[string]interface{}{
			"tipo":               verdict.Class,
			"limite_diario":      verdict.Limit,
			"consultas_hoje":     verdict.Count,
			"restantes":          verdict.Remaining,
			"reset_em":           verdict.ResetAt,
			"reset_em_formatado": quota.FormatUntilReset(time.Now(), verdict.ResetAt),
			"mensagem":           verdict.Message(),
		},
	})
}

// usageSummary handles GET /api/v1/admin/uso/resumo
func (s *Server) usageSummary(c echo.Context) error {
	days := intQuery(c, "dias", 7)
	since := time.Now().AddDate(0, 0, -days)

	summaries, err := s.usageRecorder.SummaryByClass(c.Request().Context(), since)
	if err != nil {
		s.logger.WithError(err).Error("failed to load usage summary")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load usage summary")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"desde":   since,
		"data":    summaries,
	})
}

// saturatedIdentities handles GET /api/v1/admin/uso/saturados
func (s *Server) saturatedIdentities(c echo.Context) error {
	days := intQuery(c, "dias", 1)
	limit := intQuery(c, "limite", 20)
	since := time.Now().AddDate(0, 0, -days)

	identities, err := s.usageRecorder.TopSaturatedIdentities(c.Request().Context(), since, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to load saturated identities")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load saturated identities")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"desde":   since,
		"data":    identities,
	})
}
