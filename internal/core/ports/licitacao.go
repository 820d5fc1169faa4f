package ports

import (
	"context"
	"time"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
)

// LicitacaoRepository stores tender records imported from PNCP.
type LicitacaoRepository interface {
	List(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error)
	Search(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error)
	GetByPNCPID(ctx context.Context, pncpID string) (*licitacao.Licitacao, error)
	Upsert(ctx context.Context, l *licitacao.Licitacao) error
	UpsertOrgao(ctx context.Context, o *licitacao.Orgao) error
	Stats(ctx context.Context) (*licitacao.Stats, error)
}

// LicitacaoService exposes the tender catalogue to the HTTP layer.
// Detail access is quota-gated at the boundary, not here.
type LicitacaoService interface {
	List(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error)
	Search(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error)
	Details(ctx context.Context, pncpID string) (*licitacao.Licitacao, error)
	Stats(ctx context.Context) (*licitacao.Stats, error)
}

// PNCPPage is one page of results from the national procurement portal.
type PNCPPage struct {
	Licitacoes  []*licitacao.Licitacao
	Orgaos      []*licitacao.Orgao
	TotalPages  int
	CurrentPage int
}

// PNCPClient fetches published tenders from the PNCP consultation API.
type PNCPClient interface {
	FetchContratacoes(ctx context.Context, from, to time.Time, page int) (*PNCPPage, error)
}

// SyncService keeps the local catalogue in sync with PNCP.
type SyncService interface {
	SyncOnce(ctx context.Context) (imported int, err error)
	Run(ctx context.Context, interval time.Duration)
}
