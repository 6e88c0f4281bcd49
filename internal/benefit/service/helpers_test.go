package service_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/benefit/repository"
	"github.com/smallbiznis/perkhub/internal/benefit/service"
	"github.com/smallbiznis/perkhub/internal/clock"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	companyrepo "github.com/smallbiznis/perkhub/internal/company/repository"
	companyservice "github.com/smallbiznis/perkhub/internal/company/service"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/migration/migrationtest"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	userrepo "github.com/smallbiznis/perkhub/internal/user/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 2025-03-12 is a Wednesday.
var baseTime = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	svc     domain.Service
	company companydomain.Company
}

func newFixture(t *testing.T, timezone string) *fixture {
	t.Helper()

	conn := migrationtest.Open(t)
	node := mustNode(t)
	clk := clock.NewFakeClock(baseTime)
	cfg := config.Config{
		Benefit: config.BenefitConfig{
			Timezone: timezone,
			TokenTTL: 5 * time.Minute,
		},
	}
	log := zap.NewNop()

	companies := companyservice.New(companyservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  companyrepo.Provide(),
		Clock: clk,
	})
	svc := service.New(service.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      repository.Provide(),
		Users:     userrepo.Provide(),
		Companies: companies,
		Clock:     clk,
		Config:    cfg,
	})

	f := &fixture{t: t, db: conn, node: node, clock: clk, svc: svc}
	f.company = f.seedCompany("Cafe Norte", "cordoba")
	return f
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func (f *fixture) seedCompany(name, city string) companydomain.Company {
	f.t.Helper()
	now := f.clock.Now()
	company := companydomain.Company{
		ID:        f.node.Generate(),
		Name:      name,
		Slug:      f.node.Generate().String(),
		City:      city,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(f.t, f.db.Create(&company).Error)
	return company
}

func (f *fixture) seedUser(points int64) userdomain.User {
	f.t.Helper()
	now := f.clock.Now()
	id := f.node.Generate()
	user := userdomain.User{
		ID:        id,
		FirstName: "Ana",
		LastName:  "Paz",
		Email:     id.String() + "@example.com",
		City:      "cordoba",
		Points:    points,
		Role:      userdomain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(f.t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) seedBenefit(mutate func(*domain.Benefit)) domain.Benefit {
	f.t.Helper()
	now := f.clock.Now()
	benefit := domain.Benefit{
		ID:          f.node.Generate(),
		CompanyID:   f.company.ID,
		Title:       "Free coffee",
		Description: "One medium coffee",
		Status:      domain.StatusAvailable,
		UsageLimit:  1,
		LimitPeriod: domain.LimitPeriodLifetime,
		PointCost:   1000,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mutate != nil {
		mutate(&benefit)
	}
	require.NoError(f.t, f.db.Create(&benefit).Error)
	return benefit
}

func (f *fixture) seedCategory(name string) domain.Category {
	f.t.Helper()
	category := domain.Category{ID: f.node.Generate(), Name: name}
	require.NoError(f.t, f.db.Create(&category).Error)
	return category
}

// seedConfirmed records a redemption confirmed at redeemedAt.
func (f *fixture) seedConfirmed(benefit domain.Benefit, userID snowflake.ID, redeemedAt time.Time) {
	f.t.Helper()
	at := redeemedAt.UTC()
	redemption := domain.BenefitRedemption{
		ID:         f.node.Generate(),
		Token:      f.node.Generate().String(),
		ExpiresAt:  at.Add(time.Minute),
		RedeemedAt: &at,
		BenefitID:  benefit.ID,
		UserID:     userID,
		CreatedAt:  at.Add(-time.Minute),
	}
	require.NoError(f.t, f.db.Create(&redemption).Error)
}

func (f *fixture) points(userID snowflake.ID) int64 {
	f.t.Helper()
	var points int64
	require.NoError(f.t, f.db.Raw(`SELECT points FROM users WHERE id = ?`, userID).Scan(&points).Error)
	return points
}

func (f *fixture) countAvailableClaims(userID, benefitID snowflake.ID) int64 {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.db.Raw(
		`SELECT COUNT(*) FROM claimed_benefits WHERE user_id = ? AND benefit_id = ? AND status = ?`,
		userID, benefitID, domain.ClaimStatusAvailable,
	).Scan(&count).Error)
	return count
}
