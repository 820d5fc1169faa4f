package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	impl "github.com/licitafacil/api/internal/application/services"
	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/internal/core/ports"
	"github.com/licitafacil/api/test/mocks"
)

func anonIdentity(ip string) quota.Identity {
	return quota.Identity{IP: ip, UserAgent: "test-agent"}
}

func freeIdentity() quota.Identity {
	id := uuid.New()
	return quota.Identity{UserID: &id, IP: "198.51.100.4"}
}

func newQuotaService(repo *mocks.InMemoryQuotaRepository, recorder *mocks.UsageRecorderMock, notifier *mocks.UpgradeNotifierMock) *impl.QuotaService {
	plans := &mocks.PlanLookupMock{}
	var n ports.UpgradeNotifier
	if notifier != nil {
		n = notifier
	}
	return impl.NewQuotaService(repo, plans, recorder, n, nil, nil)
}

func TestConsume_ConcurrentIncrementsAreAllCounted(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, nil)
	identity := freeIdentity() // FREE: 10/day

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	var firstErr error

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := svc.Consume(context.Background(), identity, "res")
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if v.Allowed {
				allowed++
			}
		}()
	}
	wg.Wait()
	require.NoError(t, firstErr)

	// Exactly the daily limit is admitted, no matter the interleaving.
	require.Equal(t, 10, allowed)

	// The stored count saturates at limit+1 instead of growing with every
	// denied retry.
	counter, err := repo.Get(context.Background(), identity.Key())
	require.NoError(t, err)
	require.Equal(t, 11, counter.Count)
}

func TestConsume_AnonymousSequence(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, nil)
	identity := anonIdentity("203.0.113.9")

	for i := 1; i <= 5; i++ {
		v, err := svc.Consume(context.Background(), identity, "res")
		require.NoError(t, err)
		require.True(t, v.Allowed, "consultation %d should be allowed", i)
		require.Equal(t, 5-i, v.Remaining)
		require.Equal(t, quota.ClassAnonymous, v.Class)
	}

	v, err := svc.Consume(context.Background(), identity, "res")
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)
}

func TestConsume_StaleWindowResets(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, nil)
	identity := anonIdentity("203.0.113.10")

	// A saturated counter whose window expired yesterday.
	stale := time.Now().Add(-25 * time.Hour)
	repo.Seed(quota.Counter{IdentityKey: identity.Key(), Count: 6, WindowStartedAt: &stale, UpdatedAt: stale})

	v, err := svc.Consume(context.Background(), identity, "res")
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 1, v.Count)
	require.Equal(t, 4, v.Remaining)
}

func TestCheck_DoesNotConsumeOrCreateCounters(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, nil)
	identity := anonIdentity("203.0.113.11")

	for i := 0; i < 3; i++ {
		v, err := svc.Check(context.Background(), identity)
		require.NoError(t, err)
		require.True(t, v.Allowed)
		require.Equal(t, 5, v.Remaining)
	}

	counter, err := repo.Get(context.Background(), identity.Key())
	require.NoError(t, err)
	require.Nil(t, counter, "peeking must not create a counter")
}

func TestConsume_InvalidIdentity(t *testing.T) {
	svc := newQuotaService(mocks.NewInMemoryQuotaRepository(), &mocks.UsageRecorderMock{}, nil)

	_, err := svc.Consume(context.Background(), quota.Identity{}, "res")
	require.ErrorIs(t, err, quota.ErrInvalidIdentity)
}

func TestConsume_RecordsUsageEvenWhenDenied(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	recorder := &mocks.UsageRecorderMock{}
	svc := newQuotaService(repo, recorder, nil)
	identity := anonIdentity("203.0.113.12")

	for i := 0; i < 7; i++ {
		_, err := svc.Consume(context.Background(), identity, fmt.Sprintf("res-%d", i))
		require.NoError(t, err)
	}

	// Recording is asynchronous; denied attempts are logged too.
	require.Eventually(t, func() bool {
		return len(recorder.Events()) == 7
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsume_RecorderFailureDoesNotAffectVerdict(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()

	// Recording runs on a detached goroutine; a recorder stuck on a dead
	// analytics store must not delay or change the verdict.
	slow := &mocks.UsageRecorderMock{AppendFn: func(ctx context.Context, _ *usage.Event) {
		time.Sleep(3 * time.Second)
	}}
	svc := newQuotaService(repo, slow, nil)
	identity := anonIdentity("203.0.113.13")

	start := time.Now()
	v, err := svc.Consume(context.Background(), identity, "res")
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Less(t, time.Since(start), time.Second)
}

func TestConsume_SaturatedFreeUserTriggersNotification(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	notifier := &mocks.UpgradeNotifierMock{}
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, notifier)
	identity := freeIdentity()

	for i := 0; i < 11; i++ {
		_, err := svc.Consume(context.Background(), identity, "res")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(notifier.Notified()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, identity.Key(), notifier.Notified()[0])
}

func TestConsume_PlanLookupFailureDegradesToFree(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	plans := &mocks.PlanLookupMock{ClassOfFn: func(ctx context.Context, userID uuid.UUID) (quota.IdentityClass, error) {
		return "", errors.New("accounts table unavailable")
	}}
	svc := impl.NewQuotaService(repo, plans, &mocks.UsageRecorderMock{}, nil, nil, nil)
	identity := freeIdentity()

	v, err := svc.Consume(context.Background(), identity, "res")
	require.NoError(t, err)
	require.Equal(t, quota.ClassFree, v.Class)
	require.Equal(t, 10, v.Limit)
}

func TestConsume_StoreFailureFailsOpenByDefault(t *testing.T) {
	repo := &mocks.QuotaRepositoryMock{
		IncrementAtomicallyFn: func(ctx context.Context, key string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error) {
			return nil, fmt.Errorf("%w: connection refused", quota.ErrStoreUnavailable)
		},
	}
	svc := impl.NewQuotaService(repo, &mocks.PlanLookupMock{}, &mocks.UsageRecorderMock{}, nil, nil, nil)

	v, err := svc.Consume(context.Background(), anonIdentity("203.0.113.14"), "res")
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 5, v.Remaining)
}

func TestConsume_StoreFailureFailsClosedWhenConfigured(t *testing.T) {
	repo := &mocks.QuotaRepositoryMock{
		IncrementAtomicallyFn: func(ctx context.Context, key string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error) {
			return nil, fmt.Errorf("%w: connection refused", quota.ErrStoreUnavailable)
		},
	}
	cfg := &impl.QuotaServiceConfig{Limits: quota.DefaultLimits, FailOpen: false}
	svc := impl.NewQuotaService(repo, &mocks.PlanLookupMock{}, &mocks.UsageRecorderMock{}, nil, cfg, nil)

	v, err := svc.Consume(context.Background(), anonIdentity("203.0.113.15"), "res")
	require.ErrorIs(t, err, quota.ErrStoreUnavailable)
	require.False(t, v.Allowed)
}

func TestCheck_StoreFailureHonorsFailOpen(t *testing.T) {
	repo := &mocks.QuotaRepositoryMock{
		GetFn: func(ctx context.Context, key string) (*quota.Counter, error) {
			return nil, fmt.Errorf("%w: timeout", quota.ErrStoreUnavailable)
		},
	}
	svc := impl.NewQuotaService(repo, &mocks.PlanLookupMock{}, &mocks.UsageRecorderMock{}, nil, nil, nil)

	v, err := svc.Check(context.Background(), anonIdentity("203.0.113.16"))
	require.NoError(t, err)
	require.True(t, v.Allowed)
}

func TestPurgeInactive(t *testing.T) {
	repo := mocks.NewInMemoryQuotaRepository()
	svc := newQuotaService(repo, &mocks.UsageRecorderMock{}, nil)

	old := time.Now().Add(-8 * 24 * time.Hour)
	repo.Seed(quota.Counter{IdentityKey: "ip:203.0.113.17", Count: 3, WindowStartedAt: &old, UpdatedAt: old})
	_, err := svc.Consume(context.Background(), anonIdentity("203.0.113.18"), "res")
	require.NoError(t, err)

	purged, err := svc.PurgeInactive(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, purged)
}
