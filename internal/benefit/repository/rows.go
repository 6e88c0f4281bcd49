package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
)

const benefitColumns = `b.id, b.company_id, b.title, b.description, b.status, b.usage_limit,
	b.limit_period, b.point_cost, b.expires_at, b.created_at, b.updated_at`

type benefitRow struct {
	ID          snowflake.ID
	CompanyID   snowflake.ID
	Title       string
	Description string
	Status      domain.Status
	UsageLimit  int
	LimitPeriod domain.LimitPeriod
	PointCost   int64
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	CompanyName    string
	CompanyLogoURL string `gorm:"column:company_logo_url"`
	CompanyCity    string
}

func (r benefitRow) benefit() domain.Benefit {
	return domain.Benefit{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		UsageLimit:  r.UsageLimit,
		LimitPeriod: r.LimitPeriod,
		PointCost:   r.PointCost,
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r benefitRow) company() domain.CompanySummary {
	return domain.CompanySummary{
		ID:      r.CompanyID,
		Name:    r.CompanyName,
		LogoURL: r.CompanyLogoURL,
		City:    r.CompanyCity,
	}
}

type claimedRow struct {
	ClaimID        snowflake.ID
	ClaimStatus    domain.ClaimStatus
	ClaimedAt      time.Time
	ID             snowflake.ID
	CompanyID      snowflake.ID
	Title          string
	Description    string
	Status         domain.Status
	UsageLimit     int
	LimitPeriod    domain.LimitPeriod
	PointCost      int64
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompanyName    string
	CompanyLogoURL string `gorm:"column:company_logo_url"`
	CompanyCity    string
}

func (r claimedRow) view() domain.ClaimedBenefitView {
	b := benefitRow{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         r.Status,
		UsageLimit:     r.UsageLimit,
		LimitPeriod:    r.LimitPeriod,
		PointCost:      r.PointCost,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CompanyName:    r.CompanyName,
		CompanyLogoURL: r.CompanyLogoURL,
		CompanyCity:    r.CompanyCity,
	}
	return domain.ClaimedBenefitView{
		ID:        r.ClaimID,
		Status:    r.ClaimStatus,
		ClaimedAt: r.ClaimedAt,
		Benefit:   b.benefit(),
		Company:   b.company(),
	}
}

type categoryRow struct {
	BenefitID snowflake.ID
	ID        snowflake.ID
	Name      string
}
