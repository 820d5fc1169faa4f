package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/licitacao"
	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/internal/core/domain/user"
	"github.com/licitafacil/api/internal/core/ports"
)

// QuotaRepositoryMock is a lightweight mock for QuotaRepository
type QuotaRepositoryMock struct {
	GetFn                 func(ctx context.Context, identityKey string) (*quota.Counter, error)
	IncrementAtomicallyFn func(ctx context.Context, identityKey string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error)
	ResetFn               func(ctx context.Context, identityKey string) error
	PurgeInactiveFn       func(ctx context.Context, cutoff time.Time) (int, error)
}

func (m *QuotaRepositoryMock) Get(ctx context.Context, identityKey string) (*quota.Counter, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, identityKey)
	}
	return nil, nil
}
func (m *QuotaRepositoryMock) IncrementAtomically(ctx context.Context, identityKey string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error) {
	if m.IncrementAtomicallyFn != nil {
		return m.IncrementAtomicallyFn(ctx, identityKey, now, window, maxCount)
	}
	return &quota.Counter{IdentityKey: identityKey, Count: 1, WindowStartedAt: &now, UpdatedAt: now}, nil
}
func (m *QuotaRepositoryMock) Reset(ctx context.Context, identityKey string) error {
	if m.ResetFn != nil {
		return m.ResetFn(ctx, identityKey)
	}
	return nil
}
func (m *QuotaRepositoryMock) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	if m.PurgeInactiveFn != nil {
		return m.PurgeInactiveFn(ctx, cutoff)
	}
	return 0, nil
}

// InMemoryQuotaRepository implements the counter contract with a mutex so
// service tests can exercise real concurrent consumption.
type InMemoryQuotaRepository struct {
	mu       sync.Mutex
	counters map[string]*quota.Counter
}

func NewInMemoryQuotaRepository() *InMemoryQuotaRepository {
	return &InMemoryQuotaRepository{counters: make(map[string]*quota.Counter)}
}

// Seed installs a counter directly, bypassing the increment contract.
// Test setup only.
func (r *InMemoryQuotaRepository) Seed(c quota.Counter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := c
	r.counters[c.IdentityKey] = &copied
}

func (r *InMemoryQuotaRepository) Get(ctx context.Context, identityKey string) (*quota.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[identityKey]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *InMemoryQuotaRepository) IncrementAtomically(ctx context.Context, identityKey string, now time.Time, window time.Duration, maxCount int) (*quota.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[identityKey]
	if !ok || c.WindowStartedAt == nil || !now.Before(c.WindowStartedAt.Add(window)) {
		started := now
		c = &quota.Counter{IdentityKey: identityKey, Count: 1, WindowStartedAt: &started, UpdatedAt: now}
		r.counters[identityKey] = c
	} else {
		if c.Count < maxCount {
			c.Count++
		}
		c.UpdatedAt = now
	}
	copied := *c
	return &copied, nil
}

func (r *InMemoryQuotaRepository) Reset(ctx context.Context, identityKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[identityKey]; ok {
		c.Count = 0
		c.WindowStartedAt = nil
	}
	return nil
}

func (r *InMemoryQuotaRepository) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for key, c := range r.counters {
		if c.UpdatedAt.Before(cutoff) {
			delete(r.counters, key)
			purged++
		}
	}
	return purged, nil
}

// PlanLookupMock is a lightweight mock for PlanLookup
type PlanLookupMock struct {
	ClassOfFn func(ctx context.Context, userID uuid.UUID) (quota.IdentityClass, error)
}

func (m *PlanLookupMock) ClassOf(ctx context.Context, userID uuid.UUID) (quota.IdentityClass, error) {
	if m.ClassOfFn != nil {
		return m.ClassOfFn(ctx, userID)
	}
	return quota.ClassFree, nil
}

// UsageRecorderMock is a lightweight mock for UsageRecorder. Appended
// events are captured for assertions.
type UsageRecorderMock struct {
	mu       sync.Mutex
	events   []*usage.Event
	AppendFn func(ctx context.Context, event *usage.Event)

	SummaryByClassFn         func(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error)
	TopSaturatedIdentitiesFn func(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error)
}

func (m *UsageRecorderMock) Append(ctx context.Context, event *usage.Event) {
	if m.AppendFn != nil {
		m.AppendFn(ctx, event)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *UsageRecorderMock) Events() []*usage.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*usage.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *UsageRecorderMock) SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error) {
	if m.SummaryByClassFn != nil {
		return m.SummaryByClassFn(ctx, since)
	}
	return nil, nil
}
func (m *UsageRecorderMock) TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error) {
	if m.TopSaturatedIdentitiesFn != nil {
		return m.TopSaturatedIdentitiesFn(ctx, since, limit)
	}
	return nil, nil
}

// UsageRepositoryMock is a lightweight mock for UsageRepository
type UsageRepositoryMock struct {
	AppendFn                 func(ctx context.Context, event *usage.Event) error
	SummaryByClassFn         func(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error)
	TopSaturatedIdentitiesFn func(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error)
}

func (m *UsageRepositoryMock) Append(ctx context.Context, event *usage.Event) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, event)
	}
	return nil
}
func (m *UsageRepositoryMock) SummaryByClass(ctx context.Context, since time.Time) ([]*usage.ClassSummary, error) {
	if m.SummaryByClassFn != nil {
		return m.SummaryByClassFn(ctx, since)
	}
	return nil, nil
}
func (m *UsageRepositoryMock) TopSaturatedIdentities(ctx context.Context, since time.Time, limit int) ([]*usage.SaturatedIdentity, error) {
	if m.TopSaturatedIdentitiesFn != nil {
		return m.TopSaturatedIdentitiesFn(ctx, since, limit)
	}
	return nil, nil
}

// UserRepositoryMock is a lightweight mock for UserRepository
type UserRepositoryMock struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*user.User, error)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("not found")
}

// UpgradeNotifierMock is a lightweight mock for UpgradeNotifier
type UpgradeNotifierMock struct {
	mu                sync.Mutex
	notified          []string
	NotifySaturatedFn func(ctx context.Context, identity quota.Identity, verdict quota.Verdict) error
}

func (m *UpgradeNotifierMock) NotifySaturated(ctx context.Context, identity quota.Identity, verdict quota.Verdict) error {
	if m.NotifySaturatedFn != nil {
		return m.NotifySaturatedFn(ctx, identity, verdict)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, identity.Key())
	return nil
}

func (m *UpgradeNotifierMock) Notified() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.notified))
	copy(out, m.notified)
	return out
}

// QuotaServiceMock is a lightweight mock for QuotaService
type QuotaServiceMock struct {
	CheckFn         func(ctx context.Context, identity quota.Identity) (quota.Verdict, error)
	ConsumeFn       func(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error)
	PurgeInactiveFn func(ctx context.Context, maxAge time.Duration) (int, error)
}

func (m *QuotaServiceMock) Check(ctx context.Context, identity quota.Identity) (quota.Verdict, error) {
	if m.CheckFn != nil {
		return m.CheckFn(ctx, identity)
	}
	return quota.Verdict{Allowed: true}, nil
}
func (m *QuotaServiceMock) Consume(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error) {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(ctx, identity, resourceID)
	}
	return quota.Verdict{Allowed: true}, nil
}
func (m *QuotaServiceMock) PurgeInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	if m.PurgeInactiveFn != nil {
		return m.PurgeInactiveFn(ctx, maxAge)
	}
	return 0, nil
}

// LicitacaoRepositoryMock is a lightweight mock for LicitacaoRepository
type LicitacaoRepositoryMock struct {
	ListFn        func(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error)
	SearchFn      func(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error)
	GetByPNCPIDFn func(ctx context.Context, pncpID string) (*licitacao.Licitacao, error)
	UpsertFn      func(ctx context.Context, l *licitacao.Licitacao) error
	UpsertOrgaoFn func(ctx context.Context, o *licitacao.Orgao) error
	StatsFn       func(ctx context.Context) (*licitacao.Stats, error)
}

func (m *LicitacaoRepositoryMock) List(ctx context.Context, opts licitacao.ListOptions) ([]*licitacao.Licitacao, int, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, opts)
	}
	return nil, 0, nil
}
func (m *LicitacaoRepositoryMock) Search(ctx context.Context, filter licitacao.SearchFilter) ([]*licitacao.Licitacao, int, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, filter)
	}
	return nil, 0, nil
}
func (m *LicitacaoRepositoryMock) GetByPNCPID(ctx context.Context, pncpID string) (*licitacao.Licitacao, error) {
	if m.GetByPNCPIDFn != nil {
		return m.GetByPNCPIDFn(ctx, pncpID)
	}
	return nil, fmt.Errorf("not found")
}
func (m *LicitacaoRepositoryMock) Upsert(ctx context.Context, l *licitacao.Licitacao) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, l)
	}
	return nil
}
func (m *LicitacaoRepositoryMock) UpsertOrgao(ctx context.Context, o *licitacao.Orgao) error {
	if m.UpsertOrgaoFn != nil {
		return m.UpsertOrgaoFn(ctx, o)
	}
	return nil
}
func (m *LicitacaoRepositoryMock) Stats(ctx context.Context) (*licitacao.Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &licitacao.Stats{}, nil
}

// PNCPClientMock is a lightweight mock for PNCPClient
type PNCPClientMock struct {
	FetchContratacoesFn func(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error)
}

func (m *PNCPClientMock) FetchContratacoes(ctx context.Context, from, to time.Time, page int) (*ports.PNCPPage, error) {
	if m.FetchContratacoesFn != nil {
		return m.FetchContratacoesFn(ctx, from, to, page)
	}
	return &ports.PNCPPage{TotalPages: 1, CurrentPage: page}, nil
}
