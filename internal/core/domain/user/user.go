package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/quota"
)

// Plan is the subscription level stored on a registered user. The legacy
// database uses GRATUITO for the free tier; FREE is accepted as well.
type Plan string

const (
	PlanGratuito    Plan = "GRATUITO"
	PlanFree        Plan = "FREE"
	PlanPremium     Plan = "PREMIUM"
	PlanEmpresarial Plan = "EMPRESARIAL"
)

// IsPremium reports whether the plan belongs to the paid set.
func (p Plan) IsPremium() bool {
	return p == PlanPremium || p == PlanEmpresarial
}

// Class maps a plan to the quota identity class used for limit decisions.
func (p Plan) Class() quota.IdentityClass {
	if p.IsPremium() {
		return quota.ClassPremium
	}
	return quota.ClassFree
}

// User is a registered account. Authentication and registration are
// handled elsewhere; the quota subsystem only needs the plan and the
// active flag.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"nome" db:"name"`
	Plan      Plan      `json:"plano" db:"plan"`
	IsActive  bool      `json:"ativo" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
