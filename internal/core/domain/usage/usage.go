package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

// Event is one consultation of a gated resource. Events are append-only:
// the application never updates or deletes them (retention is handled by
// external maintenance jobs).
type Event struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	IdentityKey string              `json:"identity_key" db:"identity_key"`
	UserID      *uuid.UUID          `json:"user_id,omitempty" db:"user_id"`
	Class       quota.IdentityClass `json:"tipo_usuario" db:"identity_class"`
	ResourceID  string              `json:"licitacao_pncp_id" db:"resource_id"`
	IP          string              `json:"ip" db:"ip"`
	UserAgent   string              `json:"user_agent,omitempty" db:"user_agent"`
	Filters     any                 `json:"filtros,omitempty" db:"filters"`
	OccurredAt  time.Time           `json:"occurred_at" db:"occurred_at"`
}

// ClassSummary aggregates consumption per identity class for analytics.
type ClassSummary struct {
	Class      quota.IdentityClass `json:"tipo" db:"identity_class"`
	Identities int                 `json:"identidades" db:"identities"`
	Events     int                 `json:"consultas" db:"events"`
}

// SaturatedIdentity is an identity that hit its daily limit, with how far
// it got.
type SaturatedIdentity struct {
	IdentityKey string    `json:"identity_key" db:"identity_key"`
	Count       int       `json:"consultas" db:"count"`
	LastEventAt time.Time `json:"ultima_consulta" db:"last_event_at"`
}
