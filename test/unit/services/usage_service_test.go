package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	impl "github.com/licitafacil/api/internal/application/services"
	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/test/mocks"
)

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	var stored *usage.Event
	repo := &mocks.UsageRepositoryMock{AppendFn: func(ctx context.Context, event *usage.Event) error {
		stored = event
		return nil
	}}
	svc := impl.NewUsageService(repo, nil)

	svc.Append(context.Background(), &usage.Event{IdentityKey: "ip:203.0.113.1", ResourceID: "res"})

	require.NotNil(t, stored)
	require.NotEqual(t, uuid.Nil, stored.ID)
	require.False(t, stored.OccurredAt.IsZero())
}

func TestAppend_SwallowsRepositoryErrors(t *testing.T) {
	repo := &mocks.UsageRepositoryMock{AppendFn: func(ctx context.Context, event *usage.Event) error {
		return errors.New("insert failed")
	}}
	svc := impl.NewUsageService(repo, nil)

	// Must not panic or propagate anything.
	svc.Append(context.Background(), &usage.Event{IdentityKey: "ip:203.0.113.1"})
}

func TestTopSaturatedIdentities_DefaultsLimit(t *testing.T) {
	var seenLimit int
	repo := &mocks.UsageRepositoryMock{TopSaturatedIdentitiesFn: func(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error) {
		seenLimit = limit
		return nil, nil
	}}
	svc := impl.NewUsageService(repo, nil)

	_, err := svc.TopSaturatedIdentities(context.Background(), time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Equal(t, 20, seenLimit)
}
