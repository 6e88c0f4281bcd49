package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidCity        = errors.New("invalid_city")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidUsageLimit  = errors.New("invalid_usage_limit")
	ErrInvalidLimitPeriod = errors.New("invalid_limit_period")
	ErrInvalidPointCost   = errors.New("invalid_point_cost")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrCategoryExists     = errors.New("category_exists")
	ErrNotFound           = errors.New("not_found")
	ErrBenefitInUse       = errors.New("benefit_in_use")

	ErrBenefitUnavailable = errors.New("benefit_unavailable")
	ErrInsufficientPoints = errors.New("insufficient_points")
	ErrAlreadyClaimed     = errors.New("already_claimed")
	ErrNotClaimable       = errors.New("not_claimable")
	ErrUsageLimitReached  = errors.New("usage_limit_reached")
)

// InsufficientPointsError carries the balance that failed to cover a claim.
type InsufficientPointsError struct {
	Balance int64
	Cost    int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("%s: balance %d, cost %d", ErrInsufficientPoints, e.Balance, e.Cost)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// Message is the user-facing explanation.
func (e *InsufficientPointsError) Message() string {
	return fmt.Sprintf("You have %d points and this benefit costs %d.", e.Balance, e.Cost)
}

// UsageLimitError reports that the current usage window is exhausted.
type UsageLimitError struct {
	Period LimitPeriod
	Limit  int
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("%s: %s limit %d", ErrUsageLimitReached, e.Period, e.Limit)
}

func (e *UsageLimitError) Unwrap() error { return ErrUsageLimitReached }

func (e *UsageLimitError) Message() string {
	switch e.Period {
	case LimitPeriodDaily:
		return "You have reached today's usage limit for this benefit. Try again tomorrow."
	case LimitPeriodWeekly:
		return "You have reached this week's usage limit for this benefit. Try again next week."
	case LimitPeriodMonthly:
		return "You have reached this month's usage limit for this benefit. Try again next month."
	default:
		return "You have reached the usage limit for this benefit."
	}
}
