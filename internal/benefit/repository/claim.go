package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"gorm.io/gorm"
)

const selectClaim = `SELECT id, user_id, benefit_id, status, created_at, updated_at FROM claimed_benefits`

const claimedViewQuery = `SELECT cb.id AS claim_id, cb.status AS claim_status, cb.created_at AS claimed_at,
	` + benefitColumns + `, c.name AS company_name, c.logo_url AS company_logo_url, c.city AS company_city
	FROM claimed_benefits cb
	JOIN benefits b ON b.id = cb.benefit_id
	JOIN companies c ON c.id = b.company_id`

func (r *repo) FindAvailableClaim(ctx context.Context, db *gorm.DB, userID, benefitID snowflake.ID) (*domain.ClaimedBenefit, error) {
	return scanClaim(db.WithContext(ctx).Raw(
		selectClaim+` WHERE user_id = ? AND benefit_id = ? AND status = ? LIMIT 1`,
		userID,
		benefitID,
		domain.ClaimStatusAvailable,
	))
}

func (r *repo) FindClaimableClaim(ctx context.Context, db *gorm.DB, claimID, userID snowflake.ID) (*domain.ClaimedBenefit, error) {
	return scanClaim(db.WithContext(ctx).Raw(
		selectClaim+` WHERE id = ? AND user_id = ? AND status = ?`,
		claimID,
		userID,
		domain.ClaimStatusAvailable,
	))
}

func (r *repo) InsertClaim(ctx context.Context, db *gorm.DB, claim *domain.ClaimedBenefit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO claimed_benefits (id, user_id, benefit_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		claim.ID,
		claim.UserID,
		claim.BenefitID,
		claim.Status,
		claim.CreatedAt,
		claim.UpdatedAt,
	).Error
}

func (r *repo) MarkClaimUsed(ctx context.Context, db *gorm.DB, claimID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE claimed_benefits
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.ClaimStatusUsed,
		now,
		claimID,
		domain.ClaimStatusAvailable,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListClaimedForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.ClaimedBenefitView, error) {
	var rows []claimedRow
	err := db.WithContext(ctx).Raw(
		claimedViewQuery+`
		 WHERE cb.user_id = ? AND cb.status = ?
		 ORDER BY cb.created_at DESC, cb.id DESC`,
		userID,
		domain.ClaimStatusAvailable,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]domain.ClaimedBenefitView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

func (r *repo) FindClaimedView(ctx context.Context, db *gorm.DB, claimID, userID snowflake.ID) (*domain.ClaimedBenefitView, error) {
	var row claimedRow
	err := db.WithContext(ctx).Raw(
		claimedViewQuery+` WHERE cb.id = ? AND cb.user_id = ?`,
		claimID,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ClaimID == 0 {
		return nil, nil
	}
	view := row.view()
	return &view, nil
}

func scanClaim(stmt *gorm.DB) (*domain.ClaimedBenefit, error) {
	var claim domain.ClaimedBenefit
	if err := stmt.Scan(&claim).Error; err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}
