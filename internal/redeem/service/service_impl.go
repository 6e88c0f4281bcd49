package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/clock"
	"github.com/smallbiznis/perkhub/internal/observability/metrics"
	"github.com/smallbiznis/perkhub/internal/realtime"
	"github.com/smallbiznis/perkhub/internal/redeem/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	notifyTimeout  = 5 * time.Second
	maxTokenLength = 64
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     benefitdomain.Repository
	Notifier realtime.Notifier
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     benefitdomain.Repository
	notifier realtime.Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("redeem.service"),
		repo:     p.Repo,
		notifier: p.Notifier,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) Present(ctx context.Context, token string) (benefitdomain.RedemptionDetail, error) {
	token, ok := normalizeToken(token)
	if !ok {
		return benefitdomain.RedemptionDetail{}, domain.ErrTokenInvalid
	}

	now := s.clock.Now()
	detail, err := s.repo.FindRedemptionDetail(ctx, s.db, token, now)
	if err != nil {
		return benefitdomain.RedemptionDetail{}, err
	}
	if detail == nil {
		s.logRejection(ctx, "present", token, now, "")
		return benefitdomain.RedemptionDetail{}, domain.ErrTokenInvalid
	}
	return *detail, nil
}

// rejection marks a confirm failure whose cause is only logged.
type rejection struct{ reason string }

func (r *rejection) Error() string { return "rejected: " + r.reason }

func (s *Service) Confirm(ctx context.Context, token string) (domain.Confirmation, error) {
	token, ok := normalizeToken(token)
	if !ok {
		s.metrics.RecordConfirmation(ctx, domain.ReasonUnknown)
		return domain.Confirmation{}, domain.ErrTokenInvalid
	}

	var (
		now          time.Time
		confirmation domain.Confirmation
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now = s.clock.Now()
		redemption, err := s.repo.LockValidRedemption(ctx, tx, token, now)
		if err != nil {
			return err
		}
		if redemption == nil {
			return domain.ErrTokenInvalid
		}

		// Expiry is judged when the lock is granted, not when it was requested.
		now = s.clock.Now()
		if redemption.State(now) == benefitdomain.RedemptionExpired {
			return &rejection{reason: domain.ReasonExpired}
		}
		if redemption.ClaimedBenefitID == nil {
			return fmt.Errorf("redemption %s: %w", redemption.ID, domain.ErrTokenNotAssociatedWithClaim)
		}

		redeemed, err := s.repo.MarkRedeemed(ctx, tx, redemption.ID, now)
		if err != nil {
			return err
		}
		if !redeemed {
			return &rejection{reason: domain.ReasonRaceLost}
		}

		used, err := s.repo.MarkClaimUsed(ctx, tx, *redemption.ClaimedBenefitID, now)
		if err != nil {
			return err
		}
		if !used {
			return &rejection{reason: domain.ReasonClaimConsumed}
		}

		benefit, company, err := s.repo.FindBenefitDetail(ctx, tx, redemption.BenefitID)
		if err != nil {
			return err
		}

		confirmation = domain.Confirmation{
			RedemptionID:     redemption.ID,
			BenefitID:        redemption.BenefitID,
			ClaimedBenefitID: *redemption.ClaimedBenefitID,
			UserID:           redemption.UserID,
			RedeemedAt:       now,
		}
		if benefit != nil {
			confirmation.BenefitTitle = benefit.Title
			confirmation.CompanyName = company.Name
		}
		return nil
	})
	if err != nil {
		return domain.Confirmation{}, s.confirmFailed(ctx, token, now, err)
	}

	s.metrics.RecordConfirmation(ctx, "ok")
	s.log.Info("redemption confirmed",
		zap.String("redemption_id", confirmation.RedemptionID.String()),
		zap.String("benefit_id", confirmation.BenefitID.String()),
		zap.String("claim_id", confirmation.ClaimedBenefitID.String()),
		zap.String("user_id", confirmation.UserID.String()),
	)

	go s.notify(context.WithoutCancel(ctx), confirmation)
	return confirmation, nil
}

func (s *Service) confirmFailed(ctx context.Context, token string, now time.Time, err error) error {
	var rejected *rejection
	switch {
	case errors.As(err, &rejected):
		s.metrics.RecordConfirmation(ctx, rejected.reason)
		s.logRejection(ctx, "confirm", token, now, rejected.reason)
		return domain.ErrTokenInvalid
	case errors.Is(err, domain.ErrTokenInvalid):
		reason := s.logRejection(ctx, "confirm", token, now, "")
		s.metrics.RecordConfirmation(ctx, reason)
		return domain.ErrTokenInvalid
	case errors.Is(err, domain.ErrTokenNotAssociatedWithClaim):
		s.metrics.RecordConfirmation(ctx, "not_associated")
		s.log.Error("redemption has no claim", zap.Error(err))
		return domain.ErrTokenNotAssociatedWithClaim
	default:
		s.metrics.RecordConfirmation(ctx, "error")
		s.log.Error("confirm redemption failed", zap.Error(err))
		return err
	}
}

// logRejection records why token was refused and returns the reason.
func (s *Service) logRejection(ctx context.Context, op, token string, now time.Time, reason string) string {
	var redemptionID snowflake.ID
	if reason == "" {
		reason = domain.ReasonUnknown
		redemption, err := s.repo.FindRedemptionByToken(ctx, s.db, token)
		if err != nil {
			s.log.Warn("classify rejected token", zap.Error(err))
		}
		if redemption != nil {
			redemptionID = redemption.ID
			switch redemption.State(now) {
			case benefitdomain.RedemptionConfirmed:
				reason = domain.ReasonAlreadyRedeemed
			case benefitdomain.RedemptionExpired:
				reason = domain.ReasonExpired
			}
		}
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("reason", reason),
	}
	if redemptionID != 0 {
		fields = append(fields, zap.String("redemption_id", redemptionID.String()))
	}
	s.log.Info("redemption token rejected", fields...)
	return reason
}

func (s *Service) notify(ctx context.Context, c domain.Confirmation) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	payload := realtime.RedemptionSuccess{
		Message:   fmt.Sprintf("Your benefit %q has been redeemed.", c.BenefitTitle),
		BenefitID: c.BenefitID.String(),
		ClaimedID: c.ClaimedBenefitID.String(),
	}
	if err := s.notifier.Notify(ctx, c.UserID.String(), realtime.EventRedemptionSuccess, payload); err != nil {
		s.metrics.RecordNotificationFailure(ctx, realtime.EventRedemptionSuccess)
		s.log.Warn("redemption notification failed",
			zap.String("redemption_id", c.RedemptionID.String()),
			zap.String("user_id", c.UserID.String()),
			zap.Error(err),
		)
	}
}

func normalizeToken(token string) (string, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" || len(token) > maxTokenLength {
		return "", false
	}
	return token, true
}
