package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Claim(ctx context.Context, benefitID, userID string) (domain.ClaimedBenefit, error) {
	id, err := s.parseID(benefitID)
	if err != nil {
		return domain.ClaimedBenefit{}, err
	}
	uid, err := s.parseID(userID)
	if err != nil {
		return domain.ClaimedBenefit{}, err
	}

	var claim domain.ClaimedBenefit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.users.FindByIDForUpdate(ctx, tx, uid)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrNotFound
		}

		benefit, err := s.repo.FindBenefitByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if benefit == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		if !benefit.Claimable(now) {
			return domain.ErrBenefitUnavailable
		}
		existing, err := s.repo.FindAvailableClaim(ctx, tx, uid, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyClaimed
		}
		if user.Points < benefit.PointCost {
			return &domain.InsufficientPointsError{Balance: user.Points, Cost: benefit.PointCost}
		}

		if benefit.PointCost > 0 {
			ok, err := s.users.DebitPoints(ctx, tx, uid, benefit.PointCost, now)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.InsufficientPointsError{Balance: user.Points, Cost: benefit.PointCost}
			}
		}

		claim = domain.ClaimedBenefit{
			ID:        s.genID.Generate(),
			UserID:    uid,
			BenefitID: id,
			Status:    domain.ClaimStatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.InsertClaim(ctx, tx, &claim)
	})

	s.metrics.RecordClaim(ctx, outcome(err))
	if err != nil {
		if !isDomainErr(err) {
			s.log.Error("claim failed",
				zap.String("benefit_id", id.String()),
				zap.String("user_id", uid.String()),
				zap.Error(err),
			)
		}
		return domain.ClaimedBenefit{}, err
	}

	s.log.Info("benefit claimed",
		zap.String("claim_id", claim.ID.String()),
		zap.String("benefit_id", id.String()),
		zap.String("user_id", uid.String()),
	)
	return claim, nil
}

var domainErrs = []error{
	domain.ErrInvalidID,
	domain.ErrNotFound,
	domain.ErrBenefitUnavailable,
	domain.ErrInsufficientPoints,
	domain.ErrAlreadyClaimed,
	domain.ErrNotClaimable,
	domain.ErrUsageLimitReached,
}

func isDomainErr(err error) bool {
	for _, target := range domainErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// outcome is the metric label for err.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, target := range domainErrs {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "error"
}
