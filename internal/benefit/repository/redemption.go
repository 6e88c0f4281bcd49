package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"gorm.io/gorm"
)

const selectRedemption = `SELECT id, token, expires_at, redeemed_at, benefit_id, user_id, claimed_benefit_id, created_at
	FROM benefit_redemptions`

func (r *repo) CountConfirmedRedemptions(ctx context.Context, db *gorm.DB, benefitID, userID snowflake.ID, since *time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM benefit_redemptions
		 WHERE benefit_id = ? AND user_id = ? AND redeemed_at IS NOT NULL`
	args := []any{benefitID, userID}
	if since != nil {
		query += ` AND redeemed_at >= ?`
		args = append(args, since.UTC())
	}

	var count int64
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) RedeemedBenefitIDs(ctx context.Context, db *gorm.DB, userID snowflake.ID, benefitIDs []snowflake.ID) (map[snowflake.ID]struct{}, error) {
	out := make(map[snowflake.ID]struct{})
	if len(benefitIDs) == 0 {
		return out, nil
	}

	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT benefit_id FROM benefit_redemptions
		 WHERE user_id = ? AND redeemed_at IS NOT NULL AND benefit_id IN ?`,
		userID,
		benefitIDs,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[snowflake.ID(id)] = struct{}{}
	}
	return out, nil
}

func (r *repo) InsertRedemption(ctx context.Context, db *gorm.DB, redemption *domain.BenefitRedemption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO benefit_redemptions (id, token, expires_at, redeemed_at, benefit_id, user_id, claimed_benefit_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		redemption.ID,
		redemption.Token,
		redemption.ExpiresAt,
		redemption.RedeemedAt,
		redemption.BenefitID,
		redemption.UserID,
		redemption.ClaimedBenefitID,
		redemption.CreatedAt,
	).Error
}

func (r *repo) FindRedemptionByToken(ctx context.Context, db *gorm.DB, token string) (*domain.BenefitRedemption, error) {
	return scanRedemption(db.WithContext(ctx).Raw(selectRedemption+` WHERE token = ?`, token))
}

func (r *repo) FindRedemptionDetail(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.RedemptionDetail, error) {
	var detail domain.RedemptionDetail
	err := db.WithContext(ctx).Raw(
		`SELECT r.id, r.expires_at, r.benefit_id, b.title AS benefit_title, c.name AS company_name,
		        r.user_id, u.first_name AS user_first_name, u.last_name AS user_last_name, r.claimed_benefit_id
		 FROM benefit_redemptions r
		 JOIN benefits b ON b.id = r.benefit_id
		 JOIN companies c ON c.id = b.company_id
		 JOIN users u ON u.id = r.user_id
		 WHERE r.token = ? AND r.redeemed_at IS NULL AND r.expires_at >= ?`,
		token,
		now,
	).Scan(&detail).Error
	if err != nil {
		return nil, err
	}
	if detail.ID == 0 {
		return nil, nil
	}
	return &detail, nil
}

func (r *repo) LockValidRedemption(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.BenefitRedemption, error) {
	return scanRedemption(db.WithContext(ctx).Raw(
		selectRedemption+`
		 WHERE token = ? AND redeemed_at IS NULL AND expires_at >= ?
		 FOR UPDATE`,
		token,
		now,
	))
}

func (r *repo) MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE benefit_redemptions
		 SET redeemed_at = ?
		 WHERE id = ? AND redeemed_at IS NULL AND expires_at >= ?`,
		now,
		id,
		now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FindActiveRedemption(ctx context.Context, db *gorm.DB, benefitID, userID snowflake.ID, now time.Time) (*domain.BenefitRedemption, error) {
	return scanRedemption(db.WithContext(ctx).Raw(
		selectRedemption+`
		 WHERE benefit_id = ? AND user_id = ? AND redeemed_at IS NULL AND expires_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		benefitID,
		userID,
		now,
	))
}

func (r *repo) ListRedemptionHistory(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]domain.RedemptionHistoryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.RedemptionHistoryItem
	err := db.WithContext(ctx).Raw(
		`SELECT r.id, r.benefit_id, b.title AS benefit_title, c.name AS company_name, r.redeemed_at
		 FROM benefit_redemptions r
		 JOIN benefits b ON b.id = r.benefit_id
		 JOIN companies c ON c.id = b.company_id
		 WHERE r.user_id = ? AND r.redeemed_at IS NOT NULL
		 ORDER BY r.redeemed_at DESC, r.id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func scanRedemption(stmt *gorm.DB) (*domain.BenefitRedemption, error) {
	var redemption domain.BenefitRedemption
	if err := stmt.Scan(&redemption).Error; err != nil {
		return nil, err
	}
	if redemption.ID == 0 {
		return nil, nil
	}
	return &redemption, nil
}
