package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectUser = `SELECT id, first_name, last_name, email, city, points, role, created_at, updated_at FROM users`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, first_name, last_name, email, city, points, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.City,
		user.Points,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.scanOne(db.WithContext(ctx).Raw(selectUser+` WHERE id = ?`, id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.scanOne(db.WithContext(ctx).Raw(selectUser+` WHERE id = ? FOR UPDATE`, id))
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.scanOne(db.WithContext(ctx).Raw(selectUser+` WHERE email = ?`, email))
}

func (r *repo) DebitPoints(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET points = points - ?, updated_at = ?
		 WHERE id = ? AND points >= ?`,
		amount,
		now,
		id,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) scanOne(stmt *gorm.DB) (*domain.User, error) {
	var user domain.User
	if err := stmt.Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}
