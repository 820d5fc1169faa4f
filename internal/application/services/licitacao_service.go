package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/ports"
)

// LicitacaoService serves the tender catalogue. Listing and search are
// free; the detail operation is quota-gated by the HTTP boundary before
// it reaches this service.
type LicitacaoService struct {
	repo   ports.LicitacaoRepository
	logger *logrus.Logger
}

func NewLicitacaoService(repo ports.LicitacaoRepository, logger *logrus.Logger) *LicitacaoService {
	return &LicitacaoService{repo: repo, logger: logger}
}

func (s *LicitacaoService) List(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error) {
	opts.Normalize()
	return s.repo.List(ctx, opts)
}

func (s *LicitacaoService) Search(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error) {
	if filter.Pagina < 1 {
		filter.Pagina = 1
	}
	if filter.Limite < 10 {
		filter.Limite = 20
	}
	if filter.Limite > 50 {
		filter.Limite = 50
	}
	filter.UF = strings.ToUpper(strings.TrimSpace(filter.UF))
	filter.PalavraChave = strings.TrimSpace(filter.PalavraChave)
	return s.repo.Search(ctx, filter)
}

func (s *LicitacaoService) Details(ctx context.Context, pncpID string) (*licitacao.Licitacao, error) {
	return s.repo.GetByPNCPID(ctx, pncpID)
}

func (s *LicitacaoService) Stats(ctx context.Context) (*licitacao.Stats, error) {
	return s.repo.Stats(ctx)
}
