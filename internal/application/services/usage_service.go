package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/internal/core/ports"
)

// UsageService records consultation events for analytics. Recording is
// best-effort: a failed insert is logged and dropped, never surfaced to
// the caller, so billing decisions are unaffected by analytics outages.
type UsageService struct {
	repo   ports.UsageRepository
	logger *logrus.Logger
}

func NewUsageService(repo ports.UsageRepository, logger *logrus.Logger) *UsageService {
	return &UsageService{repo: repo, logger: logger}
}

// Append persists the event, filling in the id and timestamp when absent.
func (s *UsageService) Append(ctx context.Context, event *usage.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := s.repo.Append(ctx, event); err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"identity_key": event.IdentityKey, "resource_id": event.ResourceID}).WithError(err).Error("usage: failed to record consultation event")
		}
		return
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity_key": event.IdentityKey, "resource_id": event.ResourceID, "class": event.Class}).Debug("usage: consultation event recorded")
	}
}

func (s *UsageService) SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error) {
	return s.repo.SummaryByClass(ctx, since)
}

func (s *UsageService) TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.TopSaturatedIdentities(ctx, since, limit)
}
