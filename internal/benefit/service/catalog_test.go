package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListForUserFiltersByCityStatusAndExpiry(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()
	user := f.seedUser(4000)
	past := baseTime.Add(-time.Hour)
	future := baseTime.Add(24 * time.Hour)

	visible := f.seedBenefit(func(b *domain.Benefit) { b.Title = "Visible"; b.ExpiresAt = &future })
	f.seedBenefit(func(b *domain.Benefit) { b.Title = "Paused"; b.Status = domain.StatusPaused })
	f.seedBenefit(func(b *domain.Benefit) { b.Title = "Expired"; b.ExpiresAt = &past })

	other := f.seedCompany("Bar Sur", "rosario")
	f.seedBenefit(func(b *domain.Benefit) { b.Title = "Elsewhere"; b.CompanyID = other.ID })

	items, err := f.svc.ListForUser(ctx, domain.ListRequest{City: "cordoba", UserID: user.ID.String()})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, visible.ID, items[0].ID)
	assert.Equal(t, "Cafe Norte", items[0].Company.Name)
	assert.False(t, items[0].IsUsed)
}

func TestListForUserRequiresCity(t *testing.T) {
	f := newFixture(t, "UTC")
	user := f.seedUser(0)

	_, err := f.svc.ListForUser(context.Background(), domain.ListRequest{City: "  ", UserID: user.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidCity)
}

func TestListForUserCategoryAndUsage(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()
	user := f.seedUser(4000)
	food := f.seedCategory("food")

	tagged := f.seedBenefit(func(b *domain.Benefit) { b.Title = "Tagged" })
	f.seedBenefit(func(b *domain.Benefit) { b.Title = "Untagged" })
	require.NoError(t, f.db.Create(&domain.BenefitCategory{BenefitID: tagged.ID, CategoryID: food.ID}).Error)
	f.seedConfirmed(tagged, user.ID, baseTime.AddDate(0, -2, 0))

	items, err := f.svc.ListForUser(ctx, domain.ListRequest{City: "cordoba", Category: "food", UserID: user.ID.String()})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, tagged.ID, items[0].ID)
	assert.True(t, items[0].IsUsed)
	require.Len(t, items[0].Categories, 1)
	assert.Equal(t, "food", items[0].Categories[0].Name)

	all, err := f.svc.ListForUser(ctx, domain.ListRequest{City: "cordoba", UserID: user.ID.String()})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetForUserReportsWindowUsage(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()
	user := f.seedUser(4000)
	benefit := f.seedBenefit(func(b *domain.Benefit) {
		b.LimitPeriod = domain.LimitPeriodMonthly
		b.UsageLimit = 2
	})

	f.seedConfirmed(benefit, user.ID, baseTime.AddDate(0, -1, 0))
	f.seedConfirmed(benefit, user.ID, baseTime.Add(-24*time.Hour))

	detail, err := f.svc.GetForUser(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.TimesUsed)
	assert.False(t, detail.IsUsed)
	assert.Equal(t, "Cafe Norte", detail.Company.Name)

	f.seedConfirmed(benefit, user.ID, baseTime.Add(-time.Hour))
	detail, err = f.svc.GetForUser(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.TimesUsed)
	assert.True(t, detail.IsUsed)

	_, err = f.svc.GetForUser(ctx, f.node.Generate().String(), user.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClaimedViewsAndHistory(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()
	user := f.seedUser(4000)
	stranger := f.seedUser(4000)
	benefit := f.seedBenefit(nil)

	claim, err := f.svc.Claim(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(t, err)

	claimed, err := f.svc.ListClaimed(ctx, user.ID.String())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, claim.ID, claimed[0].ID)
	assert.Equal(t, benefit.Title, claimed[0].Benefit.Title)

	view, err := f.svc.GetClaimed(ctx, claim.ID.String(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, f.company.Name, view.Company.Name)

	_, err = f.svc.GetClaimed(ctx, claim.ID.String(), stranger.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.seedConfirmed(benefit, user.ID, baseTime.Add(-time.Hour))
	history, err := f.svc.History(ctx, user.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, benefit.Title, history[0].BenefitTitle)
	assert.Equal(t, f.company.Name, history[0].CompanyName)
}
