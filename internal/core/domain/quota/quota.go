package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is the rolling consultation window: 24h counted from the
// first consultation, not from midnight.
const DefaultWindow = 24 * time.Hour

var (
	// ErrStoreUnavailable signals that the counter storage could not be
	// reached (or timed out). Callers decide fail-open vs fail-closed.
	ErrStoreUnavailable = errors.New("quota store unavailable")

	// ErrInvalidIdentity signals that neither a user ID nor an IP address
	// could be resolved for the request.
	ErrInvalidIdentity = errors.New("invalid identity: no user id or ip")
)

// IdentityClass is the consumer tier a request is billed against.
// The wire values are kept in Portuguese for compatibility with the
// existing frontend.
type IdentityClass string

const (
	ClassAnonymous IdentityClass = "ANONIMO"
	ClassFree      IdentityClass = "FREE"
	ClassPremium   IdentityClass = "PREMIUM"
)

// Identity is the resolved caller of a gated request. UserID takes
// precedence over IP when both are present.
type Identity struct {
	UserID    *uuid.UUID
	IP        string
	UserAgent string
}

// Key returns the storage key for the identity: "user:<id>" for
// authenticated callers, "ip:<addr>" otherwise. Empty when unresolvable.
func (i Identity) Key() string {
	if i.UserID != nil && *i.UserID != uuid.Nil {
		return "user:" + i.UserID.String()
	}
	if i.IP != "" {
		return "ip:" + i.IP
	}
	return ""
}

// Valid reports whether the identity can be billed at all.
func (i Identity) Valid() bool { return i.Key() != "" }

// Counter is the persisted consumption state for one identity key.
// A nil WindowStartedAt means no consultation has happened yet in the
// current window.
type Counter struct {
	IdentityKey     string     `db:"identity_key"`
	Count           int        `db:"count"`
	WindowStartedAt *time.Time `db:"window_started_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// WindowStale reports whether the counter's window has expired at `now`.
// A counter without a started window is treated as stale (nothing counts).
func (c *Counter) WindowStale(now time.Time, window time.Duration) bool {
	if c == nil || c.WindowStartedAt == nil {
		return true
	}
	return now.Sub(*c.WindowStartedAt) >= window
}

// EffectiveCount is the count external observers may see: stale windows
// evaluate as zero regardless of what is stored.
func (c *Counter) EffectiveCount(now time.Time, window time.Duration) int {
	if c.WindowStale(now, window) {
		return 0
	}
	return c.Count
}

// Limits holds the daily consultation limits per identity class.
// Premium is a large sentinel rather than true infinity so arithmetic
// stays total.
type Limits struct {
	Anonymous int
	Free      int
	Premium   int
}

// DefaultLimits mirrors the product tiers: 5/day anonymous by IP,
// 10/day registered free, premium effectively unlimited.
var DefaultLimits = Limits{Anonymous: 5, Free: 10, Premium: 99999}

// Verdict is the outcome of a quota decision.
type Verdict struct {
	Allowed   bool          `json:"permitido"`
	Remaining int           `json:"restantes"`
	Limit     int           `json:"limite_diario"`
	Count     int           `json:"consultas_hoje"`
	ResetAt   time.Time     `json:"reset_em"`
	Class     IdentityClass `json:"tipo"`
}

// Message returns the user-facing message for the verdict, matching the
// wording the frontend already displays.
func (v Verdict) Message() string {
	if v.Allowed {
		switch v.Class {
		case ClassPremium:
			return "Consultas ilimitadas"
		case ClassAnonymous:
			return fmt.Sprintf("Você tem %d consultas restantes. Cadastre-se grátis para ter %d consultas/dia!", v.Remaining, DefaultLimits.Free)
		default:
			return fmt.Sprintf("Você tem %d consultas restantes hoje", v.Remaining)
		}
	}
	switch v.Class {
	case ClassAnonymous:
		return fmt.Sprintf("Você atingiu o limite de %d consultas gratuitas. Cadastre-se para ter %d consultas/dia!", v.Limit, DefaultLimits.Free)
	default:
		return "Você atingiu o limite diário de consultas. Tente novamente amanhã ou atualize para o plano PREMIUM."
	}
}

// Policy maps identity classes to limits and counter snapshots to verdicts.
// Pure: no I/O, no clock reads.
type Policy struct {
	Limits Limits
	Window time.Duration
}

// NewPolicy builds a policy, falling back to defaults for zero values.
func NewPolicy(limits Limits, window time.Duration) Policy {
	if limits.Anonymous <= 0 {
		limits.Anonymous = DefaultLimits.Anonymous
	}
	if limits.Free <= 0 {
		limits.Free = DefaultLimits.Free
	}
	if limits.Premium <= 0 {
		limits.Premium = DefaultLimits.Premium
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Limits: limits, Window: window}
}

// LimitFor returns the daily limit for an identity class.
func (p Policy) LimitFor(class IdentityClass) int {
	switch class {
	case ClassPremium:
		return p.Limits.Premium
	case ClassFree:
		return p.Limits.Free
	default:
		return p.Limits.Anonymous
	}
}

// Evaluate produces the read-only view of a counter: Allowed reports
// whether a further consultation would be accepted. Used by peek/check;
// never called with side effects.
func (p Policy) Evaluate(class IdentityClass, counter *Counter, now time.Time) Verdict {
	limit := p.LimitFor(class)
	count := 0
	resetAt := now.Add(p.Window)
	if counter != nil && !counter.WindowStale(now, p.Window) {
		count = counter.Count
		resetAt = counter.WindowStartedAt.Add(p.Window)
	}
	return Verdict{
		Allowed:   count < limit,
		Remaining: max(0, limit-count),
		Limit:     limit,
		Count:     count,
		ResetAt:   resetAt,
		Class:     class,
	}
}

// EvaluateConsumption judges a counter that has already been incremented
// for the current request: the request is allowed when its own unit still
// fits within the limit, so Remaining counts the just-consumed unit.
func (p Policy) EvaluateConsumption(class IdentityClass, counter *Counter, now time.Time) Verdict {
	limit := p.LimitFor(class)
	count := counter.EffectiveCount(now, p.Window)
	resetAt := now.Add(p.Window)
	if counter != nil && counter.WindowStartedAt != nil && !counter.WindowStale(now, p.Window) {
		resetAt = counter.WindowStartedAt.Add(p.Window)
	}
	return Verdict{
		Allowed:   count <= limit,
		Remaining: max(0, limit-count),
		Limit:     limit,
		Count:     count,
		ResetAt:   resetAt,
		Class:     class,
	}
}

// FormatUntilReset renders the time left until resetAt as the frontend
// expects it, e.g. "5h 30min".
func FormatUntilReset(now, resetAt time.Time) string {
	d := resetAt.Sub(now)
	if d <= 0 {
		return "0min"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dmin", m)
	}
	return fmt.Sprintf("%dh %dmin", h, m)
}
