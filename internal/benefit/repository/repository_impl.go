package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBenefitByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Benefit, error) {
	var row benefitRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+benefitColumns+`
		 FROM benefits b
		 WHERE b.id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	benefit := row.benefit()
	return &benefit, nil
}

func (r *repo) FindBenefitDetail(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Benefit, *domain.CompanySummary, error) {
	var row benefitRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+benefitColumns+`, c.name AS company_name, c.logo_url AS company_logo_url, c.city AS company_city
		 FROM benefits b
		 JOIN companies c ON c.id = b.company_id
		 WHERE b.id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, nil, err
	}
	if row.ID == 0 {
		return nil, nil, nil
	}
	benefit, company := row.benefit(), row.company()
	return &benefit, &company, nil
}

func (r *repo) ListAvailableByCity(ctx context.Context, db *gorm.DB, city, category string, now time.Time) ([]domain.CatalogItem, error) {
	query := `SELECT ` + benefitColumns + `, c.name AS company_name, c.logo_url AS company_logo_url, c.city AS company_city
		 FROM benefits b
		 JOIN companies c ON c.id = b.company_id
		 WHERE c.city = ? AND b.status = ? AND (b.expires_at IS NULL OR b.expires_at >= ?)`
	args := []any{city, domain.StatusAvailable, now}
	if category != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM benefit_categories bc
			JOIN categories cat ON cat.id = bc.category_id
			WHERE bc.benefit_id = b.id AND cat.name = ?)`
		args = append(args, category)
	}
	query += ` ORDER BY b.created_at DESC, b.id DESC`

	var rows []benefitRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]domain.CatalogItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.CatalogItem{
			Benefit: row.benefit(),
			Company: row.company(),
		})
	}
	return items, nil
}

func (r *repo) ListBenefits(ctx context.Context, db *gorm.DB, filter domain.ListBenefitFilter) ([]domain.Benefit, error) {
	var benefits []domain.Benefit
	stmt := db.WithContext(ctx).Model(&domain.Benefit{})
	if filter.CompanyID != 0 {
		stmt = stmt.Where("company_id = ?", filter.CompanyID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&benefits).Error; err != nil {
		return nil, err
	}
	return benefits, nil
}

func (r *repo) InsertBenefit(ctx context.Context, db *gorm.DB, benefit *domain.Benefit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO benefits (id, company_id, title, description, status, usage_limit, limit_period, point_cost, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		benefit.ID,
		benefit.CompanyID,
		benefit.Title,
		benefit.Description,
		benefit.Status,
		benefit.UsageLimit,
		benefit.LimitPeriod,
		benefit.PointCost,
		benefit.ExpiresAt,
		benefit.CreatedAt,
		benefit.UpdatedAt,
	).Error
}

func (r *repo) UpdateBenefit(ctx context.Context, db *gorm.DB, benefit *domain.Benefit) error {
	return db.WithContext(ctx).Exec(
		`UPDATE benefits
		 SET title = ?, description = ?, status = ?, usage_limit = ?, limit_period = ?,
		     point_cost = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		benefit.Title,
		benefit.Description,
		benefit.Status,
		benefit.UsageLimit,
		benefit.LimitPeriod,
		benefit.PointCost,
		benefit.ExpiresAt,
		benefit.UpdatedAt,
		benefit.ID,
	).Error
}

func (r *repo) DeleteBenefit(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Exec(`DELETE FROM benefit_categories WHERE benefit_id = ?`, id).Error; err != nil {
		return false, err
	}
	result := db.WithContext(ctx).Exec(`DELETE FROM benefits WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListLapsedBenefitIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM benefits
		 WHERE status <> ? AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusExpired,
		now,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) MarkBenefitsExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE benefits
		 SET status = ?, updated_at = ?
		 WHERE id IN ? AND status <> ? AND expires_at IS NOT NULL AND expires_at < ?`,
		domain.StatusExpired,
		now,
		ids,
		domain.StatusExpired,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) BenefitInUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT
		   (SELECT COUNT(*) FROM claimed_benefits WHERE benefit_id = ?) +
		   (SELECT COUNT(*) FROM benefit_redemptions WHERE benefit_id = ?)`,
		id,
		id,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, name) VALUES (?, ?)`,
		category.ID,
		category.Name,
	).Error
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var categories []domain.Category
	if err := db.WithContext(ctx).Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repo) FindCategoriesByName(ctx context.Context, db *gorm.DB, names []string) ([]domain.Category, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var categories []domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name FROM categories WHERE name IN ? ORDER BY name ASC`,
		names,
	).Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repo) ReplaceBenefitCategories(ctx context.Context, db *gorm.DB, benefitID snowflake.ID, categoryIDs []snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM benefit_categories WHERE benefit_id = ?`, benefitID).Error; err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO benefit_categories (benefit_id, category_id) VALUES (?, ?)`,
			benefitID,
			categoryID,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) CategoriesForBenefits(ctx context.Context, db *gorm.DB, benefitIDs []snowflake.ID) (map[snowflake.ID][]domain.Category, error) {
	out := make(map[snowflake.ID][]domain.Category, len(benefitIDs))
	if len(benefitIDs) == 0 {
		return out, nil
	}

	var rows []categoryRow
	err := db.WithContext(ctx).Raw(
		`SELECT bc.benefit_id, c.id, c.name
		 FROM benefit_categories bc
		 JOIN categories c ON c.id = bc.category_id
		 WHERE bc.benefit_id IN ?
		 ORDER BY c.name ASC`,
		benefitIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BenefitID] = append(out[row.BenefitID], domain.Category{ID: row.ID, Name: row.Name})
	}
	return out, nil
}
