// Package window computes the usage windows that cap how often a benefit can be redeemed.
package window

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"gorm.io/gorm"
)

// Start returns the inclusive lower bound of the window containing now, in loc.
// Weeks start on Sunday. LIFETIME has no bound and returns ok=false.
func Start(period domain.LimitPeriod, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()

	switch period {
	case domain.LimitPeriodDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	case domain.LimitPeriodWeekly:
		return time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc), true
	case domain.LimitPeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}

type RedemptionCounter interface {
	CountConfirmedRedemptions(ctx context.Context, db *gorm.DB, benefitID, userID snowflake.ID, since *time.Time) (int64, error)
}

// Count returns how many confirmed redemptions of benefit by userID fall in the current window.
func Count(ctx context.Context, db *gorm.DB, counter RedemptionCounter, benefit domain.Benefit, userID snowflake.ID, now time.Time, loc *time.Location) (int64, error) {
	var since *time.Time
	if start, ok := Start(benefit.LimitPeriod, now, loc); ok {
		utc := start.UTC()
		since = &utc
	}
	return counter.CountConfirmedRedemptions(ctx, db, benefit.ID, userID, since)
}
