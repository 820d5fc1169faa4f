package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

// QuotaRepository provides race-safe storage for consultation counters.
// Implementations MUST make IncrementAtomically a single conditional
// operation (upsert with conditional arithmetic, or equivalent row-level
// locking): two concurrent increments for the same key must both be
// reflected, and a stale-window reset must never be observable as an
// intermediate state. Storage failures are reported wrapping
// quota.ErrStoreUnavailable.
type QuotaRepository interface {
	// Get returns the counter for key, or nil if it was never created.
	Get(ctx context.Context, identityKey string) (*quota.Counter, error)

	// IncrementAtomically creates the counter at count 1, resets a stale
	// window to count 1, or increments an active window, all as one atomic
	// operation. Stored counts saturate at maxCount so retry storms cannot
	// grow counters without bound. Returns the post-update counter.
	IncrementAtomically(ctx context.Context, identityKey string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error)

	// Reset clears a counter (count 0, no window). Maintenance tooling
	// only; never called on the request hot path.
	Reset(ctx context.Context, identityKey string) error

	// PurgeInactive deletes counters untouched since the cutoff and
	// returns how many were removed.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int, error)
}

// QuotaService answers quota decisions for resolved identities.
// Safe for concurrent use; correctness under concurrency comes from the
// repository, not in-process locks.
type QuotaService interface {
	// Check is the read-only view ("X consultas restantes"). It never
	// mutates state and never creates a counter.
	Check(ctx context.Context, identity quota.Identity) (quota.Verdict, error)

	// Consume bills one consultation of resourceID against the identity
	// and returns the post-consumption verdict. The increment is not
	// rolled back on deny; usage recording is best-effort.
	Consume(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error)

	// PurgeInactive removes counters inactive for longer than maxAge.
	PurgeInactive(ctx context.Context, maxAge time.Duration) (int, error)
}

// PlanLookup resolves the identity class of a registered user. Only
// consulted when a user id is present on the identity.
type PlanLookup interface {
	ClassOf(ctx context.Context, userID uuid.UUID) (quota.IdentityClass, error)
}
