package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	impl "github.com/licitafacil/api/internal/application/services"
	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/test/mocks"
)

func TestSyncOnce_WalksAllPages(t *testing.T) {
	client := &mocks.PNCPClientMock{FetchContratacoesFn: func(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error) {
		return &ports.PNCPPage{
			Licitacoes: []*licitacao.Licitacao{
				{PNCPID: fmt.Sprintf("pncp-%d-a", page)},
				{PNCPID: fmt.Sprintf("pncp-%d-b", page)},
			},
			Orgaos:      []*licitacao.Orgao{{CNPJ: fmt.Sprintf("%014d", page)}},
			TotalPages:  3,
			CurrentPage: page,
		}, nil
	}}

	var upserted []string
	repo := &mocks.LicitacaoRepositoryMock{UpsertFn: func(ctx context.Context, l *licitacao.Licitacao) error {
		upserted = append(upserted, l.PNCPID)
		return nil
	}}

	svc := impl.NewPNCPSyncService(client, repo, time.Hour, nil)
	imported, err := svc.SyncOnce(context.Background())

	require.NoError(t, err)
	require.Equal(t, 6, imported)
	require.Len(t, upserted, 6)
}

func TestSyncOnce_SkipsFailedItems(t *testing.T) {
	client := &mocks.PNCPClientMock{FetchContratacoesFn: func(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error) {
		return &ports.PNCPPage{
			Licitacoes:  []*licitacao.Licitacao{{PNCPID: "good"}, {PNCPID: "bad"}, {PNCPID: "also-good"}},
			TotalPages:  1,
			CurrentPage: 1,
		}, nil
	}}
	repo := &mocks.LicitacaoRepositoryMock{UpsertFn: func(ctx context.Context, l *licitacao.Licitacao) error {
		if l.PNCPID == "bad" {
			return errors.New("constraint violation")
		}
		return nil
	}}

	svc := impl.NewPNCPSyncService(client, repo, time.Hour, nil)
	imported, err := svc.SyncOnce(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, imported)
}

func TestSyncOnce_PageFetchErrorStopsRun(t *testing.T) {
	client := &mocks.PNCPClientMock{FetchContratacoesFn: func(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error) {
		if page == 2 {
			return nil, errors.New("portal down")
		}
		return &ports.PNCPPage{
			Licitacoes:  []*licitacao.Licitacao{{PNCPID: "one"}},
			TotalPages:  3,
			CurrentPage: page,
		}, nil
	}}
	repo := &mocks.LicitacaoRepositoryMock{UpsertFn: func(ctx context.Context, l *licitacao.Licitacao) error { return nil }}

	svc := impl.NewPNCPSyncService(client, repo, time.Hour, nil)
	imported, err := svc.SyncOnce(context.Background())

	require.Error(t, err)
	require.Equal(t, 1, imported)
}
