package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/benefit/window"
)

func (s *Service) ListForUser(ctx context.Context, req domain.ListRequest) ([]domain.CatalogItem, error) {
	city := strings.TrimSpace(req.City)
	if city == "" {
		return nil, domain.ErrInvalidCity
	}
	userID, err := s.parseID(req.UserID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListAvailableByCity(ctx, s.db, city, strings.TrimSpace(req.Category), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := benefitIDs(items)
	categories, err := s.repo.CategoriesForBenefits(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	redeemed, err := s.repo.RedeemedBenefitIDs(ctx, s.db, userID, ids)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Categories = categories[items[i].ID]
		_, items[i].IsUsed = redeemed[items[i].ID]
	}
	return items, nil
}

func (s *Service) GetForUser(ctx context.Context, benefitID, userID string) (domain.BenefitDetail, error) {
	id, err := s.parseID(benefitID)
	if err != nil {
		return domain.BenefitDetail{}, err
	}
	uid, err := s.parseID(userID)
	if err != nil {
		return domain.BenefitDetail{}, err
	}

	benefit, company, err := s.repo.FindBenefitDetail(ctx, s.db, id)
	if err != nil {
		return domain.BenefitDetail{}, err
	}
	if benefit == nil {
		return domain.BenefitDetail{}, domain.ErrNotFound
	}

	used, err := window.Count(ctx, s.db, s.repo, *benefit, uid, s.clock.Now(), s.loc)
	if err != nil {
		return domain.BenefitDetail{}, err
	}

	categories, err := s.repo.CategoriesForBenefits(ctx, s.db, []snowflake.ID{benefit.ID})
	if err != nil {
		return domain.BenefitDetail{}, err
	}
	benefit.Categories = categories[benefit.ID]

	return domain.BenefitDetail{
		Benefit:   *benefit,
		Company:   *company,
		TimesUsed: used,
		IsUsed:    used >= int64(benefit.UsageLimit),
	}, nil
}

func (s *Service) ListClaimed(ctx context.Context, userID string) ([]domain.ClaimedBenefitView, error) {
	uid, err := s.parseID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListClaimedForUser(ctx, s.db, uid)
}

func (s *Service) GetClaimed(ctx context.Context, claimedID, userID string) (domain.ClaimedBenefitView, error) {
	id, err := s.parseID(claimedID)
	if err != nil {
		return domain.ClaimedBenefitView{}, err
	}
	uid, err := s.parseID(userID)
	if err != nil {
		return domain.ClaimedBenefitView{}, err
	}

	view, err := s.repo.FindClaimedView(ctx, s.db, id, uid)
	if err != nil {
		return domain.ClaimedBenefitView{}, err
	}
	if view == nil {
		return domain.ClaimedBenefitView{}, domain.ErrNotFound
	}
	return *view, nil
}

func (s *Service) ActiveRedemption(ctx context.Context, benefitID, userID string) (*domain.RedemptionToken, error) {
	id, err := s.parseID(benefitID)
	if err != nil {
		return nil, err
	}
	uid, err := s.parseID(userID)
	if err != nil {
		return nil, err
	}

	redemption, err := s.repo.FindActiveRedemption(ctx, s.db, id, uid, s.clock.Now())
	if err != nil || redemption == nil {
		return nil, err
	}

	token := &domain.RedemptionToken{
		Token:     redemption.Token,
		ExpiresAt: redemption.ExpiresAt,
		BenefitID: redemption.BenefitID,
	}
	if redemption.ClaimedBenefitID != nil {
		token.ClaimedBenefitID = *redemption.ClaimedBenefitID
	}
	return token, nil
}

func (s *Service) History(ctx context.Context, userID string) ([]domain.RedemptionHistoryItem, error) {
	uid, err := s.parseID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRedemptionHistory(ctx, s.db, uid, historyLimit)
}
