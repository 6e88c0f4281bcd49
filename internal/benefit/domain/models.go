package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPaused    Status = "PAUSED"
	StatusExpired   Status = "EXPIRED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPaused, StatusExpired:
		return true
	}
	return false
}

type LimitPeriod string

const (
	LimitPeriodDaily    LimitPeriod = "DAILY"
	LimitPeriodWeekly   LimitPeriod = "WEEKLY"
	LimitPeriodMonthly  LimitPeriod = "MONTHLY"
	LimitPeriodLifetime LimitPeriod = "LIFETIME"
)

func (p LimitPeriod) Valid() bool {
	switch p {
	case LimitPeriodDaily, LimitPeriodWeekly, LimitPeriodMonthly, LimitPeriodLifetime:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimStatusAvailable ClaimStatus = "AVAILABLE"
	ClaimStatusUsed      ClaimStatus = "USED"
)

type Benefit struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID `gorm:"column:company_id;not null;index" json:"company_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text;not null;default:''" json:"description"`
	Status      Status       `gorm:"type:varchar(16);not null;default:'AVAILABLE';index" json:"status"`
	UsageLimit  int          `gorm:"column:usage_limit;not null;default:1" json:"usage_limit"`
	LimitPeriod LimitPeriod  `gorm:"column:limit_period;type:varchar(16);not null;default:'LIFETIME'" json:"limit_period"`
	PointCost   int64        `gorm:"column:point_cost;not null;default:0" json:"point_cost"`
	ExpiresAt   *time.Time   `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`

	Categories []Category `gorm:"-" json:"categories,omitempty"`
}

func (Benefit) TableName() string { return "benefits" }

// Claimable reports whether a new claim may be taken at now.
func (b Benefit) Claimable(now time.Time) bool {
	if b.Status != StatusAvailable {
		return false
	}
	return b.ExpiresAt == nil || !now.After(*b.ExpiresAt)
}

type Category struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id"`
	Name string       `gorm:"not null;uniqueIndex" json:"name"`
}

func (Category) TableName() string { return "categories" }

type BenefitCategory struct {
	BenefitID  snowflake.ID `gorm:"column:benefit_id;primaryKey"`
	CategoryID snowflake.ID `gorm:"column:category_id;primaryKey;index"`
}

func (BenefitCategory) TableName() string { return "benefit_categories" }

type ClaimedBenefit struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index:idx_claimed_benefits_owner" json:"user_id"`
	BenefitID snowflake.ID `gorm:"column:benefit_id;not null;index:idx_claimed_benefits_owner" json:"benefit_id"`
	Status    ClaimStatus  `gorm:"type:varchar(16);not null;default:'AVAILABLE';index:idx_claimed_benefits_owner" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (ClaimedBenefit) TableName() string { return "claimed_benefits" }

type BenefitRedemption struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	Token            string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	ExpiresAt        time.Time     `gorm:"column:expires_at;not null" json:"expires_at"`
	RedeemedAt       *time.Time    `gorm:"column:redeemed_at;index:idx_benefit_redemptions_usage" json:"redeemed_at,omitempty"`
	BenefitID        snowflake.ID  `gorm:"column:benefit_id;not null;index:idx_benefit_redemptions_usage" json:"benefit_id"`
	UserID           snowflake.ID  `gorm:"column:user_id;not null;index:idx_benefit_redemptions_usage" json:"user_id"`
	ClaimedBenefitID *snowflake.ID `gorm:"column:claimed_benefit_id;index" json:"claimed_benefit_id,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
}

func (BenefitRedemption) TableName() string { return "benefit_redemptions" }

type RedemptionState string

const (
	RedemptionIssued    RedemptionState = "ISSUED"
	RedemptionConfirmed RedemptionState = "CONFIRMED"
	RedemptionExpired   RedemptionState = "EXPIRED"
)

// State derives the lifecycle state at now.
func (r BenefitRedemption) State(now time.Time) RedemptionState {
	switch {
	case r.RedeemedAt != nil:
		return RedemptionConfirmed
	case r.ExpiresAt.Before(now):
		return RedemptionExpired
	default:
		return RedemptionIssued
	}
}
