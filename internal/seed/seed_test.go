package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	benefitrepo "github.com/smallbiznis/perkhub/internal/benefit/repository"
	benefitservice "github.com/smallbiznis/perkhub/internal/benefit/service"
	"github.com/smallbiznis/perkhub/internal/clock"
	companyrepo "github.com/smallbiznis/perkhub/internal/company/repository"
	companyservice "github.com/smallbiznis/perkhub/internal/company/service"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/migration/migrationtest"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	userrepo "github.com/smallbiznis/perkhub/internal/user/repository"
	userservice "github.com/smallbiznis/perkhub/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newParams(t *testing.T, seed config.SeedConfig) Params {
	t.Helper()

	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{
		Benefit: config.BenefitConfig{SignupPoints: 4000},
		Seed:    seed,
	}

	users := userservice.New(userservice.Params{
		DB:     conn,
		Log:    log,
		GenID:  node,
		Repo:   userrepo.Provide(),
		Clock:  clk,
		Config: cfg,
	})
	companies := companyservice.New(companyservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  companyrepo.Provide(),
		Clock: clk,
	})
	benefits := benefitservice.New(benefitservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      benefitrepo.Provide(),
		Users:     userrepo.Provide(),
		Companies: companies,
		Clock:     clk,
		Config:    cfg,
	})

	return Params{
		DB:       conn,
		Log:      log,
		Config:   cfg,
		Users:    users,
		UserRepo: userrepo.Provide(),
		Benefits: benefits,
	}
}

func TestRunSeedsAdminAndCategories(t *testing.T) {
	p := newParams(t, config.SeedConfig{
		AdminEmail:     " Root@Example.com ",
		AdminFirstName: "Perkhub",
		AdminLastName:  "Admin",
		AdminCity:      "cordoba",
		Categories:     []string{"Food", "Wellness"},
	})

	require.NoError(t, Run(p))
	require.NoError(t, Run(p))

	admin, err := p.UserRepo.FindByEmail(context.Background(), p.DB, "root@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, userdomain.RoleAdmin, admin.Role)
	assert.Equal(t, "cordoba", admin.City)

	var admins int64
	require.NoError(t, p.DB.Raw(`SELECT COUNT(*) FROM users WHERE role = ?`, userdomain.RoleAdmin).Scan(&admins).Error)
	assert.Equal(t, int64(1), admins)

	categories, err := p.Benefits.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}

func TestEnsureAdminLeavesExistingUser(t *testing.T) {
	p := newParams(t, config.SeedConfig{
		AdminEmail:     "ana@example.com",
		AdminFirstName: "Perkhub",
		AdminLastName:  "Admin",
	})
	ctx := context.Background()

	member, err := p.Users.Register(ctx, userdomain.RegisterRequest{
		FirstName: "Ana",
		LastName:  "Paz",
		Email:     "ana@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, Run(p))

	stored, err := p.Users.GetByID(ctx, member.ID.String())
	require.NoError(t, err)
	assert.Equal(t, userdomain.RoleUser, stored.Role)
}

func TestRunWithoutSeedConfigIsNoop(t *testing.T) {
	p := newParams(t, config.SeedConfig{})

	require.NoError(t, Run(p))

	var users int64
	require.NoError(t, p.DB.Raw(`SELECT COUNT(*) FROM users`).Scan(&users).Error)
	assert.Zero(t, users)
}

func TestEnsureCategoriesRejectsBlankName(t *testing.T) {
	p := newParams(t, config.SeedConfig{})

	err := EnsureCategories(context.Background(), p.Benefits, []string{"  "}, zap.NewNop())
	assert.Error(t, err)
}
