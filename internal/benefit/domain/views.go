package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CompanySummary struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	LogoURL string       `json:"logo_url"`
	City    string       `json:"city,omitempty"`
}

type CatalogItem struct {
	Benefit
	Company CompanySummary `json:"company"`
	// IsUsed is true once the user has ever confirmed a redemption of the benefit.
	IsUsed bool `json:"is_used"`
}

type BenefitDetail struct {
	Benefit
	Company   CompanySummary `json:"company"`
	TimesUsed int64          `json:"times_used"`
	IsUsed    bool           `json:"is_used"`
}

type ClaimedBenefitView struct {
	ID        snowflake.ID   `json:"id"`
	Status    ClaimStatus    `json:"status"`
	ClaimedAt time.Time      `json:"claimed_at"`
	Benefit   Benefit        `json:"benefit"`
	Company   CompanySummary `json:"company"`
}

type RedemptionToken struct {
	Token            string       `json:"token"`
	ExpiresAt        time.Time    `json:"expires_at"`
	BenefitID        snowflake.ID `json:"benefit_id"`
	ClaimedBenefitID snowflake.ID `json:"claimed_benefit_id"`
}

// RedemptionDetail is what the merchant sees when a token is presented.
type RedemptionDetail struct {
	ID               snowflake.ID  `json:"id"`
	ExpiresAt        time.Time     `json:"expires_at"`
	BenefitID        snowflake.ID  `json:"benefit_id"`
	BenefitTitle     string        `json:"benefit_title"`
	CompanyName      string        `json:"company_name"`
	UserID           snowflake.ID  `json:"-"`
	UserFirstName    string        `json:"user_first_name"`
	UserLastName     string        `json:"user_last_name"`
	ClaimedBenefitID *snowflake.ID `json:"-"`
}

type RedemptionHistoryItem struct {
	ID           snowflake.ID `json:"id"`
	BenefitID    snowflake.ID `json:"benefit_id"`
	BenefitTitle string       `json:"benefit_title"`
	CompanyName  string       `json:"company_name"`
	RedeemedAt   time.Time    `json:"redeemed_at"`
}
