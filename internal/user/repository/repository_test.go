package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/migration/migrationtest"
	"github.com/smallbiznis/perkhub/internal/user/domain"
	"github.com/smallbiznis/perkhub/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var baseTime = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, conn *gorm.DB, repo domain.Repository, points int64) domain.User {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	id := node.Generate()
	user := domain.User{
		ID:        id,
		FirstName: "Ana",
		LastName:  "Paz",
		Email:     id.String() + "@example.com",
		City:      "cordoba",
		Points:    points,
		Role:      domain.RoleUser,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	require.NoError(t, repo.Insert(context.Background(), conn, &user))
	return user
}

func balance(t *testing.T, conn *gorm.DB, repo domain.Repository, id snowflake.ID) int64 {
	t.Helper()
	user, err := repo.FindByID(context.Background(), conn, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.Points
}

func TestDebitPointsRejectsOverdraftFromStaleRead(t *testing.T) {
	conn := migrationtest.Open(t)
	repo := repository.Provide()
	ctx := context.Background()
	user := seedUser(t, conn, repo, 1000)

	// Both debits are decided on the same unlocked read.
	stale, err := repo.FindByID(ctx, conn, user.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stale.Points, int64(800))

	ok, err := repo.DebitPoints(ctx, conn, user.ID, 800, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DebitPoints(ctx, conn, user.ID, 800, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(200), balance(t, conn, repo, user.ID))
}

func TestDebitPointsConcurrentNeverOverdraws(t *testing.T) {
	conn := migrationtest.Open(t)
	repo := repository.Provide()
	ctx := context.Background()
	user := seedUser(t, conn, repo, 1000)

	const (
		attempts = 6
		cost     = int64(300)
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		debited int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// No row lock: every goroutine sees enough points and tries to spend.
			seen, err := repo.FindByID(ctx, conn, user.ID)
			if !assert.NoError(t, err) || seen.Points < cost {
				return
			}
			ok, err := repo.DebitPoints(ctx, conn, user.ID, cost, baseTime)
			if !assert.NoError(t, err) || !ok {
				return
			}
			mu.Lock()
			debited += cost
			mu.Unlock()
		}()
	}
	wg.Wait()

	final := balance(t, conn, repo, user.ID)
	assert.LessOrEqual(t, debited, int64(1000))
	assert.GreaterOrEqual(t, final, int64(0))
	assert.Equal(t, int64(1000)-debited, final)
	assert.Equal(t, int64(100), final)
}

func TestDebitPointsUnknownUser(t *testing.T) {
	conn := migrationtest.Open(t)
	repo := repository.Provide()

	ok, err := repo.DebitPoints(context.Background(), conn, snowflake.ID(42), 10, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)
}
