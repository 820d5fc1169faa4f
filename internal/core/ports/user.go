package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/licitafacil/api/internal/core/domain/user"
)

// UserRepository reads registered accounts. Account creation and
// credential handling live in the auth system, outside this service.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}
