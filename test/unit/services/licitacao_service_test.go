package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	impl "github.com/licitafacil/api/internal/application/services"
	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/test/mocks"
)

func TestList_NormalizesPagination(t *testing.T) {
	var seen licitacao.ListOptions
	repo := &mocks.LicitacaoRepositoryMock{ListFn: func(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error) {
		seen = opts
		return nil, 0, nil
	}}
	svc := impl.NewLicitacaoService(repo, nil)

	_, _, err := svc.List(context.Background(), licitacao.ListOptions{Pagina: -3, Limite: 999, Direcao: "sideways"})
	require.NoError(t, err)
	require.Equal(t, 1, seen.Pagina)
	require.Equal(t, 50, seen.Limite)
	require.Equal(t, "DESC", seen.Direcao)
}

func TestSearch_CleansFilter(t *testing.T) {
	var seen licitacao.SearchFilter
	repo := &mocks.LicitacaoRepositoryMock{SearchFn: func(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error) {
		seen = filter
		return nil, 0, nil
	}}
	svc := impl.NewLicitacaoService(repo, nil)

	_, _, err := svc.Search(context.Background(), licitacao.SearchFilter{UF: " sp ", PalavraChave: "  merenda escolar "})
	require.NoError(t, err)
	require.Equal(t, "SP", seen.UF)
	require.Equal(t, "merenda escolar", seen.PalavraChave)
	require.Equal(t, 1, seen.Pagina)
	require.Equal(t, 20, seen.Limite)
}

func TestDetails_PassesThrough(t *testing.T) {
	want := &licitacao.Licitacao{PNCPID: "123", Objeto: "compra de material"}
	repo := &mocks.LicitacaoRepositoryMock{GetByPNCPIDFn: func(ctx context.Context, pncpID string) (*licitacao.Licitacao, error) {
		require.Equal(t, "123", pncpID)
		return want, nil
	}}
	svc := impl.NewLicitacaoService(repo, nil)

	got, err := svc.Details(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, want, got)
}
