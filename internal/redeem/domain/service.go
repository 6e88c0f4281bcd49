package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
)

var (
	// ErrTokenInvalid covers unknown, already redeemed and expired tokens alike.
	ErrTokenInvalid                = errors.New("token_invalid")
	ErrTokenNotAssociatedWithClaim = errors.New("token_not_associated_with_claim")
)

// Rejection reasons recorded in logs and metrics, never shown to the redeemer.
const (
	ReasonUnknown         = "unknown"
	ReasonAlreadyRedeemed = "already_redeemed"
	ReasonExpired         = "expired"
	ReasonClaimConsumed   = "claim_consumed"
	ReasonRaceLost        = "race_lost"
)

type Confirmation struct {
	RedemptionID     snowflake.ID `json:"redemption_id"`
	BenefitID        snowflake.ID `json:"benefit_id"`
	BenefitTitle     string       `json:"benefit_title"`
	CompanyName      string       `json:"company_name"`
	ClaimedBenefitID snowflake.ID `json:"claimed_benefit_id"`
	UserID           snowflake.ID `json:"-"`
	RedeemedAt       time.Time    `json:"redeemed_at"`
}

type Service interface {
	// Present describes a still-valid token without changing it.
	Present(ctx context.Context, token string) (benefitdomain.RedemptionDetail, error)
	// Confirm consumes the token and its claim, then notifies the owner.
	Confirm(ctx context.Context, token string) (Confirmation, error)
}
