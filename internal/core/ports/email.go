package ports

import (
	"context"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

// UpgradeNotifier nudges free-tier users towards the premium plan when
// they exhaust their daily quota. Best-effort: failures are logged, never
// surfaced to the request path, and implementations deduplicate so a user
// is nudged at most once per window.
type UpgradeNotifier interface {
	NotifySaturated(ctx context.Context, identity quota.Identity, verdict quota.Verdict) error
}
