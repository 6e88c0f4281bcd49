package domain

import (
	"context"
	"time"
)

type ListRequest struct {
	City     string
	Category string
	UserID   string
}

type CreateBenefitRequest struct {
	// Company accepts a company id or its exact name.
	Company     string      `json:"company"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      Status      `json:"status"`
	UsageLimit  int         `json:"usage_limit"`
	LimitPeriod LimitPeriod `json:"limit_period"`
	PointCost   int64       `json:"point_cost"`
	ExpiresAt   *time.Time  `json:"expires_at"`
	Categories  []string    `json:"categories"`
}

type UpdateBenefitRequest struct {
	ID          string       `json:"-"`
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Status      *Status      `json:"status"`
	UsageLimit  *int         `json:"usage_limit"`
	LimitPeriod *LimitPeriod `json:"limit_period"`
	PointCost   *int64       `json:"point_cost"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	Categories  []string     `json:"categories"`
}

type AdminListRequest struct {
	Company string
	Status  string
}

// CatalogService answers read-only questions about benefits for one user.
type CatalogService interface {
	ListForUser(ctx context.Context, req ListRequest) ([]CatalogItem, error)
	GetForUser(ctx context.Context, benefitID, userID string) (BenefitDetail, error)
	ListClaimed(ctx context.Context, userID string) ([]ClaimedBenefitView, error)
	GetClaimed(ctx context.Context, claimedID, userID string) (ClaimedBenefitView, error)
	// ActiveRedemption returns nil when the user has no outstanding token for the benefit.
	ActiveRedemption(ctx context.Context, benefitID, userID string) (*RedemptionToken, error)
	History(ctx context.Context, userID string) ([]RedemptionHistoryItem, error)
}

type ClaimService interface {
	// Claim spends the benefit's point cost and records an AVAILABLE claim.
	Claim(ctx context.Context, benefitID, userID string) (ClaimedBenefit, error)
}

type TokenService interface {
	// IssueToken mints a short-lived single-use redemption token for an AVAILABLE claim.
	IssueToken(ctx context.Context, claimedID, userID string) (RedemptionToken, error)
}

type AdminService interface {
	CreateBenefit(ctx context.Context, req CreateBenefitRequest) (Benefit, error)
	UpdateBenefit(ctx context.Context, req UpdateBenefitRequest) (Benefit, error)
	DeleteBenefit(ctx context.Context, id string) error
	ListBenefits(ctx context.Context, req AdminListRequest) ([]Benefit, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type Service interface {
	CatalogService
	ClaimService
	TokenService
	AdminService
}
