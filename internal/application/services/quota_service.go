package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/domain/usage"
	"github.com/licitafacil/api/internal/core/ports"
)

// QuotaService implements ports.QuotaService. Concurrency safety comes
// from the repository's atomic increment; this service holds no mutable
// state of its own.
type QuotaService struct {
	repo         ports.QuotaRepository
	plans        ports.PlanLookup
	recorder     ports.UsageRecorder
	notifier     ports.UpgradeNotifier
	policy       quota.Policy
	failOpen     bool
	storeTimeout time.Duration
	logger       *logrus.Logger
}

// QuotaServiceConfig groups the tunables of the quota subsystem.
type QuotaServiceConfig struct {
	Limits quota.Limits
	Window time.Duration
	// FailOpen controls behavior when the counter store is unreachable:
	// true allows the request (under-counting at most for the outage
	// duration), false denies everything gated. A product decision, so it
	// is explicit configuration rather than a hardcoded default.
	FailOpen     bool
	StoreTimeout time.Duration
}

func NewQuotaService(repo ports.QuotaRepository, plans ports.PlanLookup, recorder ports.UsageRecorder, notifier ports.UpgradeNotifier, cfg *QuotaServiceConfig, logger *logrus.Logger) *QuotaService {
	limits := quota.DefaultLimits
	window := quota.DefaultWindow
	failOpen := true
	storeTimeout := 300 * time.Millisecond
	if cfg != nil {
		limits = cfg.Limits
		if cfg.Window > 0 {
			window = cfg.Window
		}
		failOpen = cfg.FailOpen
		if cfg.StoreTimeout > 0 {
			storeTimeout = cfg.StoreTimeout
		}
	}
	return &QuotaService{
		repo:         repo,
		plans:        plans,
		recorder:     recorder,
		notifier:     notifier,
		policy:       quota.NewPolicy(limits, window),
		failOpen:     failOpen,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Policy exposes the effective policy (limits and window) for display.
func (s *QuotaService) Policy() quota.Policy { return s.policy }

// Check returns the current verdict without consuming a consultation.
// Never creates a counter, so fresh identities stay unpersisted.
func (s *QuotaService) Check(ctx context.Context, identity quota.Identity) (quota.Verdict, error) {
	if !identity.Valid() {
		return quota.Verdict{}, quota.ErrInvalidIdentity
	}
	class := s.classOf(ctx, identity)
	now := time.Now()

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	counter, err := s.repo.Get(sctx, identity.Key())
	if err != nil {
		return s.storeFailure(class, now, err)
	}
	return s.policy.Evaluate(class, counter, now), nil
}

// Consume bills one consultation. The counter is incremented first, as a
// single atomic operation, and the verdict is computed from the
// post-increment state so Remaining counts the consumed unit. A denied
// attempt is not rolled back; the stored count saturates at limit+1 so
// retry storms cannot grow it without bound. The usage event is recorded
// on every attempt, allowed or not.
func (s *QuotaService) Consume(ctx context.Context, identity quota.Identity, resourceID string) (quota.Verdict, error) {
	if !identity.Valid() {
		return quota.Verdict{}, quota.ErrInvalidIdentity
	}
	class := s.classOf(ctx, identity)
	now := time.Now()
	limit := s.policy.LimitFor(class)

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	counter, err := s.repo.IncrementAtomically(sctx, identity.Key(), now, s.policy.Window, limit+1)
	if err != nil {
		return s.storeFailure(class, now, err)
	}

	verdict := s.policy.EvaluateConsumption(class, counter, now)
	s.recordUsage(identity, class, resourceID, now)

	if !verdict.Allowed && s.notifier != nil && class == quota.ClassFree {
		go s.notifySaturated(identity, verdict)
	}
	return verdict, nil
}

// PurgeInactive removes counters untouched for longer than maxAge.
func (s *QuotaService) PurgeInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	purged, err := s.repo.PurgeInactive(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if s.logger != nil && purged > 0 {
		s.logger.WithFields(logrus.Fields{"purged": purged, "max_age": maxAge}).Info("quota: purged inactive counters")
	}
	return purged, nil
}

// classOf resolves the billing class. Plan lookup failures degrade an
// authenticated caller to FREE rather than anonymous.
func (s *QuotaService) classOf(ctx context.Context, identity quota.Identity) quota.IdentityClass {
	if identity.UserID == nil {
		return quota.ClassAnonymous
	}
	class, err := s.plans.ClassOf(ctx, *identity.UserID)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"user_id": identity.UserID}).WithError(err).Warn("quota: plan lookup failed; treating user as FREE")
		}
		return quota.ClassFree
	}
	return class
}

// storeFailure applies the configured fail-open/fail-closed policy when
// the counter store is unreachable.
func (s *QuotaService) storeFailure(class quota.IdentityClass, now time.Time, err error) (quota.Verdict, error) {
	limit := s.policy.LimitFor(class)
	verdict := quota.Verdict{
		Allowed:   s.failOpen,
		Remaining: 0,
		Limit:     limit,
		ResetAt:   now.Add(s.policy.Window),
		Class:     class,
	}
	if s.failOpen {
		verdict.Remaining = limit
		if s.logger != nil {
			s.logger.WithError(err).Warn("quota: store unavailable; failing open")
		}
		return verdict, nil
	}
	if s.logger != nil {
		s.logger.WithError(err).Error("quota: store unavailable; failing closed")
	}
	if !errors.Is(err, quota.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %v", quota.ErrStoreUnavailable, err)
	}
	return verdict, err
}

// recordUsage appends the consultation event without blocking the
// response path. The recorder itself swallows storage errors.
func (s *QuotaService) recordUsage(identity quota.Identity, class quota.IdentityClass, resourceID string, occurredAt time.Time) {
	if s.recorder == nil {
		return
	}
	event := &usage.Event{
		IdentityKey: identity.Key(),
		UserID:      identity.UserID,
		Class:       class,
		ResourceID:  resourceID,
		IP:          identity.IP,
		UserAgent:   identity.UserAgent,
		OccurredAt:  occurredAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.recorder.Append(ctx, event)
	}()
}

func (s *QuotaService) notifySaturated(identity quota.Identity, verdict quota.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.notifier.NotifySaturated(ctx, identity, verdict); err != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identity_key": identity.Key()}).WithError(err).Warn("quota: upgrade notification failed")
	}
}
