package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/infrastructure/httpserver/helpers"
	"github.com/licitafacil/api/internal/infrastructure/repositories"
)

// listLicitacoes handles GET /api/v1/licitacoes
func (s *Server) listLicitacoes(c echo.Context) error {
	opts := licitacao.ListOptions{
		Pagina:  intQuery(c, "pagina", 1),
		Limite:  intQuery(c, "limite", 20),
		Ordenar: c.QueryParam("ordenar"),
		Direcao: strings.ToUpper(c.QueryParam("direcao")),
	}

	items, total, err := s.licitacaoSvc.List(c.Request().Context(), opts)
	if err != nil {
		s.logger.WithError(err).Error("failed to list licitacoes")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list licitacoes")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
		"paginacao": map[string]interface{}{
			"pagina": opts.Pagina,
			"limite": opts.Limite,
			"total":  total,
		},
	})
}

// searchLicitacoes handles GET /api/v1/licitacoes/buscar
func (s *Server) searchLicitacoes(c echo.Context) error {
	filter := licitacao.SearchFilter{
		UF:           strings.ToUpper(strings.TrimSpace(c.QueryParam("uf"))),
		Municipio:    strings.TrimSpace(c.QueryParam("municipio")),
		Modalidade:   licitacao.Modalidade(c.QueryParam("modalidade")),
		Situacao:     licitacao.Situacao(c.QueryParam("situacao")),
		PalavraChave: strings.TrimSpace(c.QueryParam("q")),
		Pagina:       intQuery(c, "pagina", 1),
		Limite:       intQuery(c, "limite", 20),
	}

	items, total, err := s.licitacaoSvc.Search(c.Request().Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to search licitacoes")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to search licitacoes")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
		"paginacao": map[string]interface{}{
			"pagina": filter.Pagina,
			"limite": filter.Limite,
			"total":  total,
		},
	})
}

// getLicitacao handles GET /api/v1/licitacoes/:pncpId. The quota gate has
// already billed the consultation; the verdict rides along in the body so
// the frontend can show the remaining quota.
func (s *Server) getLicitacao(c echo.Context) error {
	pncpID := c.Param("pncpId")

	l, err := s.licitacaoSvc.Details(c.Request().Context(), pncpID)
	if err != nil {
		if errors.Is(err, repositories.ErrLicitacaoNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   "NAO_ENCONTRADA",
				"message": "Licitação não encontrada",
			})
		}
		s.logger.WithError(err).Error("failed to load licitacao")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load licitacao")
	}

	response := map[string]interface{}{
		"success": true,
		"data":    l,
	}
	if verdict, ok := helpers.GetVerdictRaw(c); ok {
		response["limite"] = map[string]interface{}{
			"tipo":           verdict.Class,
			"limite_diario":  verdict.Limit,
			"consultas_hoje": verdict.Count,
			"restantes":      verdict.Remaining,
			"reset_em":       verdict.ResetAt,
			"mensagem":       verdict.Message(),
		}
	}
	return c.JSON(http.StatusOK, response)
}

// licitacaoStats handles GET /api/v1/licitacoes/estatisticas
func (s *Server) licitacaoStats(c echo.Context) error {
	stats, err := s.licitacaoSvc.Stats(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to load stats")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load stats")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}

func intQuery(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
