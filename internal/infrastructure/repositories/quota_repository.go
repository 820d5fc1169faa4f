package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/internal/infrastructure/db"
)

// QuotaRepository stores consultation counters in Postgres. All request
// paths go through a single conditional upsert so the database, not the
// application, serializes concurrent consumption of the same identity.
type QuotaRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewQuotaRepository(database *db.Database, logger *logrus.Logger) ports.QuotaRepository {
	return &QuotaRepository{db: database, logger: logger}
}

// Get returns the counter for an identity key, or nil when the identity
// never consumed anything.
func (r *QuotaRepository) Get(ctx context.Context, identityKey string) (*quota.Counter, error) {
	var c quota.Counter
	query := `
		SELECT identity_key, count, window_started_at, updated_at
		FROM quota_counters
		WHERE identity_key = $1`

	err := r.db.DB.GetContext(ctx, &c, query, identityKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity_key": identityKey}).WithError(err).Error("db: failed to load quota counter")
		}
		return nil, fmt.Errorf("%w: get counter: %v", quota.ErrStoreUnavailable, err)
	}
	return &c, nil
}

// IncrementAtomically is the one write on the request hot path. The
// three cases of the contract (first consumption, stale-window reset,
// in-window increment) are folded into a single upsert so no interleaving
// of concurrent callers can lose an increment or expose a half-reset row.
// The stored count saturates at maxCount.
func (r *QuotaRepository) IncrementAtomically(ctx context.Context, identityKey string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error) {
	// A window started at or before the cutoff has expired.
	cutoff := now.Add(-window)

	var c quota.Counter
	query := `
		INSERT INTO quota_counters (identity_key, count, window_started_at, updated_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (identity_key) DO UPDATE SET
			count = CASE
				WHEN quota_counters.window_started_at IS NULL
					OR quota_counters.window_started_at <= $3 THEN 1
				ELSE LEAST(quota_counters.count + 1, $4)
			END,
			window_started_at = CASE
				WHEN quota_counters.window_started_at IS NULL
					OR quota_counters.window_started_at <= $3 THEN $2
				ELSE quota_counters.window_started_at
			END,
			updated_at = $2
		RETURNING identity_key, count, window_started_at, updated_at`

	err := r.db.DB.GetContext(ctx, &c, query, identityKey, now, cutoff, maxCount)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity_key": identityKey}).WithError(err).Error("db: failed to increment quota counter")
		}
		return nil, fmt.Errorf("%w: increment counter: %v", quota.ErrStoreUnavailable, err)
	}
	return &c, nil
}

// Reset clears a counter back to the no-window state. Administrative
// tooling only.
func (r *QuotaRepository) Reset(ctx context.Context, identityKey string) error {
	query := `
		UPDATE quota_counters
		SET count = 0, window_started_at = NULL, updated_at = NOW()
		WHERE identity_key = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, identityKey); err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"identity_key": identityKey}).WithError(err).Error("db: failed to reset quota counter")
		}
		return fmt.Errorf("%w: reset counter: %v", quota.ErrStoreUnavailable, err)
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"identity_key": identityKey}).Info("db: quota counter reset")
	}
	return nil
}

// PurgeInactive deletes counters whose last mutation predates the cutoff.
func (r *QuotaRepository) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM quota_counters WHERE updated_at < $1`, cutoff)
	if err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: failed to purge inactive quota counters")
		}
		return 0, fmt.Errorf("%w: purge counters: %v", quota.ErrStoreUnavailable, err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(purged), nil
}
