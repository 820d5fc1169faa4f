package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/domain/quota"
	"github.com/licitafacil/api/internal/core/ports"
)

// PlanService resolves the quota class of registered users from the
// accounts table. Inactive accounts are billed as anonymous so a banned
// user cannot keep the larger registered allowance.
type PlanService struct {
	users  ports.UserRepository
	logger *logrus.Logger
}

func NewPlanService(users ports.UserRepository, logger *logrus.Logger) *PlanService {
	return &PlanService{users: users, logger: logger}
}

func (s *PlanService) ClassOf(ctx context.Context, userID uuid.UUID) (quota.IdentityClass, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return quota.ClassFree, err
	}
	if !u.IsActive {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"user_id": userID}).Debug("plan: inactive account billed as anonymous")
		}
		return quota.ClassAnonymous, nil
	}
	return u.Plan.Class(), nil
}
