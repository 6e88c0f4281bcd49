package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/benefit/window"
	"github.com/smallbiznis/perkhub/pkg/db"
	"go.uber.org/zap"
)

func (s *Service) IssueToken(ctx context.Context, claimedID, userID string) (domain.RedemptionToken, error) {
	token, period, err := s.issueToken(ctx, claimedID, userID)
	s.metrics.RecordTokenIssued(ctx, outcome(err), string(period))
	return token, err
}

func (s *Service) issueToken(ctx context.Context, claimedID, userID string) (domain.RedemptionToken, domain.LimitPeriod, error) {
	id, err := s.parseID(claimedID)
	if err != nil {
		return domain.RedemptionToken{}, "", domain.ErrNotClaimable
	}
	uid, err := s.parseID(userID)
	if err != nil {
		return domain.RedemptionToken{}, "", err
	}

	claim, err := s.repo.FindClaimableClaim(ctx, s.db, id, uid)
	if err != nil {
		return domain.RedemptionToken{}, "", err
	}
	if claim == nil {
		return domain.RedemptionToken{}, "", domain.ErrNotClaimable
	}

	benefit, err := s.repo.FindBenefitByID(ctx, s.db, claim.BenefitID)
	if err != nil {
		return domain.RedemptionToken{}, "", err
	}
	if benefit == nil {
		return domain.RedemptionToken{}, "", domain.ErrNotClaimable
	}

	now := s.clock.Now()
	used, err := window.Count(ctx, s.db, s.repo, *benefit, uid, now, s.loc)
	if err != nil {
		return domain.RedemptionToken{}, benefit.LimitPeriod, err
	}
	if used >= int64(benefit.UsageLimit) {
		return domain.RedemptionToken{}, benefit.LimitPeriod, &domain.UsageLimitError{
			Period: benefit.LimitPeriod,
			Limit:  benefit.UsageLimit,
		}
	}

	claimID := claim.ID
	redemption := domain.BenefitRedemption{
		ID:               s.genID.Generate(),
		ExpiresAt:        now.Add(s.tokenTTL),
		BenefitID:        benefit.ID,
		UserID:           uid,
		ClaimedBenefitID: &claimID,
		CreatedAt:        now,
	}

	for attempt := 1; ; attempt++ {
		redemption.Token, err = newToken()
		if err != nil {
			return domain.RedemptionToken{}, benefit.LimitPeriod, err
		}
		err = s.repo.InsertRedemption(ctx, s.db, &redemption)
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) || attempt >= maxTokenInsertTries {
			return domain.RedemptionToken{}, benefit.LimitPeriod, err
		}
	}

	s.log.Info("redemption token issued",
		zap.String("redemption_id", redemption.ID.String()),
		zap.String("claim_id", claimID.String()),
		zap.String("benefit_id", benefit.ID.String()),
		zap.String("user_id", uid.String()),
		zap.Time("expires_at", redemption.ExpiresAt),
	)

	return domain.RedemptionToken{
		Token:            redemption.Token,
		ExpiresAt:        redemption.ExpiresAt,
		BenefitID:        benefit.ID,
		ClaimedBenefitID: claimID,
	}, benefit.LimitPeriod, nil
}

// newToken returns 160 random bits as lowercase hex.
func newToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate redemption token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
