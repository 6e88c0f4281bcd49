package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateBenefit(ctx context.Context, req domain.CreateBenefitRequest) (domain.Benefit, error) {
	company, err := s.companies.Resolve(ctx, req.Company)
	if err != nil {
		return domain.Benefit{}, err
	}

	now := s.clock.Now()
	benefit := domain.Benefit{
		ID:          s.genID.Generate(),
		CompanyID:   company.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		UsageLimit:  req.UsageLimit,
		LimitPeriod: req.LimitPeriod,
		PointCost:   req.PointCost,
		ExpiresAt:   utcPtr(req.ExpiresAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if benefit.Status == "" {
		benefit.Status = domain.StatusAvailable
	}
	if benefit.UsageLimit == 0 {
		benefit.UsageLimit = 1
	}
	if benefit.LimitPeriod == "" {
		benefit.LimitPeriod = domain.LimitPeriodLifetime
	}
	if err := validateBenefit(benefit); err != nil {
		return domain.Benefit{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories, err := s.resolveCategories(ctx, tx, req.Categories)
		if err != nil {
			return err
		}
		if err := s.repo.InsertBenefit(ctx, tx, &benefit); err != nil {
			return err
		}
		if err := s.repo.ReplaceBenefitCategories(ctx, tx, benefit.ID, categoryIDs(categories)); err != nil {
			return err
		}
		benefit.Categories = categories
		return nil
	})
	if err != nil {
		return domain.Benefit{}, err
	}

	s.log.Info("benefit created",
		zap.String("benefit_id", benefit.ID.String()),
		zap.String("company_id", company.ID.String()),
	)
	return benefit, nil
}

func (s *Service) UpdateBenefit(ctx context.Context, req domain.UpdateBenefitRequest) (domain.Benefit, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Benefit{}, err
	}

	var benefit domain.Benefit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindBenefitByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		benefit = *current

		if req.Title != nil {
			benefit.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			benefit.Description = strings.TrimSpace(*req.Description)
		}
		if req.Status != nil {
			benefit.Status = *req.Status
		}
		if req.UsageLimit != nil {
			benefit.UsageLimit = *req.UsageLimit
		}
		if req.LimitPeriod != nil {
			benefit.LimitPeriod = *req.LimitPeriod
		}
		if req.PointCost != nil {
			benefit.PointCost = *req.PointCost
		}
		if req.ExpiresAt != nil {
			benefit.ExpiresAt = utcPtr(req.ExpiresAt)
		}
		if err := validateBenefit(benefit); err != nil {
			return err
		}

		benefit.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateBenefit(ctx, tx, &benefit); err != nil {
			return err
		}

		if req.Categories != nil {
			categories, err := s.resolveCategories(ctx, tx, req.Categories)
			if err != nil {
				return err
			}
			if err := s.repo.ReplaceBenefitCategories(ctx, tx, benefit.ID, categoryIDs(categories)); err != nil {
				return err
			}
			benefit.Categories = categories
			return nil
		}

		categories, err := s.repo.CategoriesForBenefits(ctx, tx, []snowflake.ID{benefit.ID})
		if err != nil {
			return err
		}
		benefit.Categories = categories[benefit.ID]
		return nil
	})
	if err != nil {
		return domain.Benefit{}, err
	}

	s.log.Info("benefit updated", zap.String("benefit_id", benefit.ID.String()))
	return benefit, nil
}

func (s *Service) DeleteBenefit(ctx context.Context, id string) error {
	benefitID, err := s.parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inUse, err := s.repo.BenefitInUse(ctx, tx, benefitID)
		if err != nil {
			return err
		}
		if inUse {
			return domain.ErrBenefitInUse
		}
		deleted, err := s.repo.DeleteBenefit(ctx, tx, benefitID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("benefit deleted", zap.String("benefit_id", benefitID.String()))
	return nil
}

func (s *Service) ListBenefits(ctx context.Context, req domain.AdminListRequest) ([]domain.Benefit, error) {
	var filter domain.ListBenefitFilter
	if value := strings.TrimSpace(req.Company); value != "" {
		company, err := s.companies.Resolve(ctx, value)
		if err != nil {
			return nil, err
		}
		filter.CompanyID = company.ID
	}
	if value := strings.ToUpper(strings.TrimSpace(req.Status)); value != "" {
		filter.Status = domain.Status(value)
		if !filter.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
	}

	benefits, err := s.repo.ListBenefits(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if len(benefits) == 0 {
		return benefits, nil
	}

	ids := make([]snowflake.ID, 0, len(benefits))
	for _, benefit := range benefits {
		ids = append(ids, benefit.ID)
	}
	categories, err := s.repo.CategoriesForBenefits(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range benefits {
		benefits[i].Categories = categories[benefits[i].ID]
	}
	return benefits, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ErrInvalidCategory
	}

	category := domain.Category{ID: s.genID.Generate(), Name: name}
	if err := s.repo.InsertCategory(ctx, s.db, &category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Category{}, domain.ErrCategoryExists
		}
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, s.db)
}

// resolveCategories maps names to existing categories; unknown names are rejected.
func (s *Service) resolveCategories(ctx context.Context, tx *gorm.DB, names []string) ([]domain.Category, error) {
	seen := make(map[string]struct{}, len(names))
	wanted := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domain.ErrInvalidCategory
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		wanted = append(wanted, name)
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	categories, err := s.repo.FindCategoriesByName(ctx, tx, wanted)
	if err != nil {
		return nil, err
	}
	if len(categories) != len(wanted) {
		return nil, domain.ErrInvalidCategory
	}
	return categories, nil
}

func validateBenefit(b domain.Benefit) error {
	switch {
	case b.Title == "":
		return domain.ErrInvalidTitle
	case !b.Status.Valid():
		return domain.ErrInvalidStatus
	case b.UsageLimit <= 0:
		return domain.ErrInvalidUsageLimit
	case !b.LimitPeriod.Valid():
		return domain.ErrInvalidLimitPeriod
	case b.PointCost < 0:
		return domain.ErrInvalidPointCost
	}
	return nil
}

func categoryIDs(categories []domain.Category) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(categories))
	for _, category := range categories {
		ids = append(ids, category.ID)
	}
	return ids
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
