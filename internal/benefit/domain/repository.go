package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListBenefitFilter struct {
	CompanyID snowflake.ID
	Status    Status
}

// Repository methods accept the handle to run on so callers can compose them in one transaction.
type Repository interface {
	FindBenefitByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Benefit, error)
	FindBenefitDetail(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Benefit, *CompanySummary, error)
	ListAvailableByCity(ctx context.Context, db *gorm.DB, city, category string, now time.Time) ([]CatalogItem, error)
	ListBenefits(ctx context.Context, db *gorm.DB, filter ListBenefitFilter) ([]Benefit, error)
	InsertBenefit(ctx context.Context, db *gorm.DB, benefit *Benefit) error
	UpdateBenefit(ctx context.Context, db *gorm.DB, benefit *Benefit) error
	DeleteBenefit(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// BenefitInUse reports whether any claim or redemption references the benefit.
	BenefitInUse(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// ListLapsedBenefitIDs returns benefits past expires_at that are not yet EXPIRED, oldest first.
	ListLapsedBenefitIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
	// MarkBenefitsExpired moves the given lapsed benefits to EXPIRED and returns the rows changed.
	MarkBenefitsExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)

	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
	FindCategoriesByName(ctx context.Context, db *gorm.DB, names []string) ([]Category, error)
	ReplaceBenefitCategories(ctx context.Context, db *gorm.DB, benefitID snowflake.ID, categoryIDs []snowflake.ID) error
	CategoriesForBenefits(ctx context.Context, db *gorm.DB, benefitIDs []snowflake.ID) (map[snowflake.ID][]Category, error)

	FindAvailableClaim(ctx context.Context, db *gorm.DB, userID, benefitID snowflake.ID) (*ClaimedBenefit, error)
	// FindClaimableClaim returns the claim only when it belongs to userID and is still AVAILABLE.
	FindClaimableClaim(ctx context.Context, db *gorm.DB, claimID, userID snowflake.ID) (*ClaimedBenefit, error)
	InsertClaim(ctx context.Context, db *gorm.DB, claim *ClaimedBenefit) error
	// MarkClaimUsed transitions AVAILABLE to USED and reports whether the row changed.
	MarkClaimUsed(ctx context.Context, db *gorm.DB, claimID snowflake.ID, now time.Time) (bool, error)
	ListClaimedForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]ClaimedBenefitView, error)
	FindClaimedView(ctx context.Context, db *gorm.DB, claimID, userID snowflake.ID) (*ClaimedBenefitView, error)

	// CountConfirmedRedemptions counts rows with redeemed_at set, at or after since when given.
	CountConfirmedRedemptions(ctx context.Context, db *gorm.DB, benefitID, userID snowflake.ID, since *time.Time) (int64, error)
	RedeemedBenefitIDs(ctx context.Context, db *gorm.DB, userID snowflake.ID, benefitIDs []snowflake.ID) (map[snowflake.ID]struct{}, error)
	InsertRedemption(ctx context.Context, db *gorm.DB, redemption *BenefitRedemption) error
	// FindRedemptionByToken ignores state; callers use it to explain rejections.
	FindRedemptionByToken(ctx context.Context, db *gorm.DB, token string) (*BenefitRedemption, error)
	FindRedemptionDetail(ctx context.Context, db *gorm.DB, token string, now time.Time) (*RedemptionDetail, error)
	// LockValidRedemption returns the unredeemed, unexpired redemption for token under a row lock.
	LockValidRedemption(ctx context.Context, db *gorm.DB, token string, now time.Time) (*BenefitRedemption, error)
	// MarkRedeemed sets redeemed_at only while the token is still unredeemed and unexpired.
	MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	FindActiveRedemption(ctx context.Context, db *gorm.DB, benefitID, userID snowflake.ID, now time.Time) (*BenefitRedemption, error)
	ListRedemptionHistory(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]RedemptionHistoryItem, error)
}
