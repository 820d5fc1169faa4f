package httpserver

import (
	customMiddleware "github.com/licitafacil/api/internal/infrastructure/httpserver/middleware"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	// Browsing the catalogue is free; opening a tender costs one
	// consultation.
	licitacoes := api.Group("/licitacoes")
	licitacoes.GET("", s.listLicitacoes)
	licitacoes.GET("/buscar", s.searchLicitacoes)
	licitacoes.GET("/estatisticas", s.licitacaoStats)
	licitacoes.GET("/:pncpId", s.getLicitacao, s.middleware.Quota.Gate("pncpId"))

	api.GET("/limites/me", s.getOwnLimits)

	admin := api.Group("/admin", customMiddleware.RequireAdmin())
	admin.GET("/uso/resumo", s.usageSummary)
	admin.GET("/uso/saturados", s.saturatedIdentities)
}
