package quota_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

func TestIdentityKey(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		identity quota.Identity
		want     string
	}{
		{"user takes precedence over ip", quota.Identity{UserID: &userID, IP: "203.0.113.7"}, "user:" + userID.String()},
		{"ip only", quota.Identity{IP: "203.0.113.7"}, "ip:203.0.113.7"},
		{"nothing resolvable", quota.Identity{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.identity.Key())
		})
	}
}

func TestIdentityValid(t *testing.T) {
	require.False(t, quota.Identity{}.Valid())
	require.True(t, quota.Identity{IP: "10.0.0.1"}.Valid())
}

func TestEvaluate_FreshIdentity(t *testing.T) {
	p := quota.NewPolicy(quota.DefaultLimits, 0)
	now := time.Now()

	v := p.Evaluate(quota.ClassAnonymous, nil, now)

	require.True(t, v.Allowed)
	require.Equal(t, 5, v.Limit)
	require.Equal(t, 0, v.Count)
	require.Equal(t, 5, v.Remaining)
}

func TestEvaluate_StaleWindowCountsAsZero(t *testing.T) {
	p := quota.NewPolicy(quota.DefaultLimits, 24*time.Hour)
	now := time.Now()
	started := now.Add(-25 * time.Hour)
	counter := &quota.Counter{Count: 5, WindowStartedAt: &started}

	v := p.Evaluate(quota.ClassAnonymous, counter, now)

	require.True(t, v.Allowed)
	require.Equal(t, 0, v.Count)
	require.Equal(t, 5, v.Remaining)
}

func TestEvaluateConsumption_AnonymousSequence(t *testing.T) {
	// 5/day: consumptions 1..5 are allowed with remaining 4..0, the 6th
	// is denied.
	p := quota.NewPolicy(quota.DefaultLimits, 24*time.Hour)
	now := time.Now()
	started := now.Add(-time.Hour)

	for count := 1; count <= 5; count++ {
		v := p.EvaluateConsumption(quota.ClassAnonymous, &quota.Counter{Count: count, WindowStartedAt: &started}, now)
		require.True(t, v.Allowed, "consumption %d should be allowed", count)
		require.Equal(t, 5-count, v.Remaining)
	}

	v := p.EvaluateConsumption(quota.ClassAnonymous, &quota.Counter{Count: 6, WindowStartedAt: &started}, now)
	require.False(t, v.Allowed)
	require.Equal(t, 0, v.Remaining)
}

func TestEvaluateConsumption_PremiumSentinel(t *testing.T) {
	p := quota.NewPolicy(quota.DefaultLimits, 24*time.Hour)
	now := time.Now()
	started := now.Add(-time.Hour)

	v := p.EvaluateConsumption(quota.ClassPremium, &quota.Counter{Count: 12345, WindowStartedAt: &started}, now)

	require.True(t, v.Allowed)
	require.Equal(t, 99999, v.Limit)
}

func TestEvaluate_ResetAtFollowsWindowStart(t *testing.T) {
	p := quota.NewPolicy(quota.DefaultLimits, 24*time.Hour)
	now := time.Now()
	started := now.Add(-2 * time.Hour)
	counter := &quota.Counter{Count: 3, WindowStartedAt: &started}

	v := p.Evaluate(quota.ClassFree, counter, now)

	require.Equal(t, started.Add(24*time.Hour), v.ResetAt)
}

func TestWindowStale(t *testing.T) {
	now := time.Now()
	window := 24 * time.Hour

	fresh := now.Add(-time.Hour)
	exact := now.Add(-window)

	require.True(t, (*quota.Counter)(nil).WindowStale(now, window))
	require.True(t, (&quota.Counter{}).WindowStale(now, window))
	require.False(t, (&quota.Counter{WindowStartedAt: &fresh}).WindowStale(now, window))
	// A window that started exactly one window ago has expired.
	require.True(t, (&quota.Counter{WindowStartedAt: &exact}).WindowStale(now, window))
}

func TestNewPolicyDefaults(t *testing.T) {
	p := quota.NewPolicy(quota.Limits{}, 0)
	require.Equal(t, 5, p.Limits.Anonymous)
	require.Equal(t, 10, p.Limits.Free)
	require.Equal(t, 99999, p.Limits.Premium)
	require.Equal(t, 24*time.Hour, p.Window)
}

func TestFormatUntilReset(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		resetAt time.Time
		want    string
	}{
		{"hours and minutes", now.Add(5*time.Hour + 30*time.Minute), "5h 30min"},
		{"minutes only", now.Add(45 * time.Minute), "45min"},
		{"already past", now.Add(-time.Minute), "0min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, quota.FormatUntilReset(now, tt.resetAt))
		})
	}
}

func TestVerdictMessage(t *testing.T) {
	allowed := quota.Verdict{Allowed: true, Remaining: 3, Limit: 5, Class: quota.ClassAnonymous}
	require.Contains(t, allowed.Message(), "3 consultas restantes")
	require.Contains(t, allowed.Message(), "Cadastre-se")

	denied := quota.Verdict{Allowed: false, Limit: 5, Class: quota.ClassAnonymous}
	require.Contains(t, denied.Message(), "limite de 5 consultas")

	premium := quota.Verdict{Allowed: true, Class: quota.ClassPremium}
	require.Equal(t, "Consultas ilimitadas", premium.Message())
}
