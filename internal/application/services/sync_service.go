package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/ports"
)

// PNCPSyncService imports published tenders from the national portal into
// the local catalogue. It shares the repository write path with the rest
// of the application but is otherwise independent of the quota core.
type PNCPSyncService struct {
	client   ports.PNCPClient
	repo     ports.LicitacaoRepository
	lookback time.Duration
	logger   *logrus.Logger
}

func NewPNCPSyncService(client ports.PNCPClient, repo ports.LicitacaoRepository, lookback time.Duration, logger *logrus.Logger) *PNCPSyncService {
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	return &PNCPSyncService{client: client, repo: repo, lookback: lookback, logger: logger}
}

// SyncOnce walks every page of the lookback period and upserts the
// results. Orgaos are written before their tenders so the foreign key
// always resolves.
func (s *PNCPSyncService) SyncOnce(ctx context.Context) (int, error) {
	to := time.Now()
	from := to.Add(-s.lookback)
	imported := 0

	for page := 1; ; page++ {
		result, err := s.client.FetchContratacoes(ctx, from, to, page)
		if err != nil {
			return imported, fmt.Errorf("pncp sync: page %d: %w", page, err)
		}
		for _, o := range result.Orgaos {
			if err := s.repo.UpsertOrgao(ctx, o); err != nil {
				if s.logger != nil {
					s.logger.WithFields(logrus.Fields{"cnpj": o.CNPJ}).WithError(err).Warn("pncp sync: failed to upsert orgao")
				}
			}
		}
		for _, l := range result.Licitacoes {
			if err := s.repo.Upsert(ctx, l); err != nil {
				if s.logger != nil {
					s.logger.WithFields(logrus.Fields{"pncp_id": l.PNCPID}).WithError(err).Warn("pncp sync: failed to upsert licitacao")
				}
				continue
			}
			imported++
		}
		if page >= result.TotalPages {
			break
		}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"imported": imported, "from": from, "to": to}).Info("pncp sync: completed")
	}
	return imported, nil
}

// Run performs an initial sync and then repeats on the given interval
// until the context is cancelled.
func (s *PNCPSyncService) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.SyncOnce(ctx); err != nil && s.logger != nil {
		s.logger.WithError(err).Error("pncp sync: initial run failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil && s.logger != nil {
				s.logger.WithError(err).Error("pncp sync: run failed")
			}
		}
	}
}
