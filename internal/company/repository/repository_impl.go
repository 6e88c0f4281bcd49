package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectCompany = `SELECT id, name, slug, city, logo_url, admin_id, created_at, updated_at FROM companies`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, slug, city, logo_url, admin_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.Slug,
		company.City,
		company.LogoURL,
		company.AdminID,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	return scanOne(db.WithContext(ctx).Raw(selectCompany+` WHERE id = ?`, id))
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Company, error) {
	return scanOne(db.WithContext(ctx).Raw(selectCompany+` WHERE name = ? ORDER BY created_at ASC LIMIT 1`, name))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, city string) ([]domain.Company, error) {
	var companies []domain.Company
	stmt := db.WithContext(ctx).Model(&domain.Company{})
	if city != "" {
		stmt = stmt.Where("city = ?", city)
	}
	if err := stmt.Order("name asc, id asc").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func scanOne(stmt *gorm.DB) (*domain.Company, error) {
	var company domain.Company
	if err := stmt.Scan(&company).Error; err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}
