package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/internal/infrastructure/db"
)

// UsageRepository persists consultation history in an append-only table.
// Rows are never updated or deleted here; retention is a maintenance job.
type UsageRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewUsageRepository(database *db.Database, logger *logrus.Logger) ports.UsageRepository {
	return &UsageRepository{db: database, logger: logger}
}

// Append inserts one consultation event.
func (r *UsageRepository) Append(ctx context.Context, event *usage.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	var filtersJSON []byte
	if event.Filters != nil {
		var err error
		filtersJSON, err = json.Marshal(event.Filters)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO usage_events (
			id, identity_key, user_id, identity_class, resource_id,
			ip, user_agent, filters, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.DB.ExecContext(ctx, query,
		event.ID,
		event.IdentityKey,
		event.UserID,
		event.Class,
		event.ResourceID,
		event.IP,
		event.UserAgent,
		filtersJSON,
		event.OccurredAt,
	)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity_key": event.IdentityKey, "resource_id": event.ResourceID}).WithError(err).Error("db: failed to insert usage event")
		}
		return err
	}
	return nil
}

// SummaryByClass aggregates events per identity class since the given time.
func (r *UsageRepository) SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error) {
	query := `
		SELECT identity_class,
		       COUNT(DISTINCT identity_key) AS identities,
		       COUNT(*) AS events
		FROM usage_events
		WHERE occurred_at >= $1
		GROUP BY identity_class
		ORDER BY events DESC`

	var summaries []*usage.ClassSummary
	if err := r.db.DB.SelectContext(ctx, &summaries, query, since); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to load usage summary")
		}
		return nil, err
	}
	return summaries, nil
}

// TopSaturatedIdentities lists the heaviest consumers with an active
// window, joined against the counters table for the stored count.
func (r *UsageRepository) TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error) {
	query := `
		SELECT c.identity_key,
		       c.count,
		       MAX(e.occurred_at) AS last_event_at
		FROM quota_counters c
		JOIN usage_events e ON e.identity_key = c.identity_key
		WHERE e.occurred_at >= $1 AND c.window_started_at IS NOT NULL
		GROUP BY c.identity_key, c.count
		ORDER BY c.count DESC, last_event_at DESC
		LIMIT $2`

	var identities []*usage.SaturatedIdentity
	if err := r.db.DB.SelectContext(ctx, &identities, query, since, limit); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to load saturated identities")
		}
		return nil, err
	}
	return identities, nil
}
