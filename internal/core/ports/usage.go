package ports

import (
	"context"
	"time"

	"github.com/licitafacil/api/internal/core/domain/usage"
)

// UsageRepository persists the append-only consultation history.
type UsageRepository interface {
	Append(ctx context.Context, event *usage.Event) error
	SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error)
	TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error)
}

// UsageRecorder records consultation events for analytics. Append is
// best-effort: implementations log failures and never propagate them to
// the request path.
type UsageRecorder interface {
	Append(ctx context.Context, event *usage.Event)
	SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error)
	TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error)
}
