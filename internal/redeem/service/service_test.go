package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	benefitrepo "github.com/smallbiznis/perkhub/internal/benefit/repository"
	benefitservice "github.com/smallbiznis/perkhub/internal/benefit/service"
	"github.com/smallbiznis/perkhub/internal/clock"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	companyrepo "github.com/smallbiznis/perkhub/internal/company/repository"
	companyservice "github.com/smallbiznis/perkhub/internal/company/service"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/migration/migrationtest"
	"github.com/smallbiznis/perkhub/internal/realtime"
	"github.com/smallbiznis/perkhub/internal/redeem/domain"
	"github.com/smallbiznis/perkhub/internal/redeem/service"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	userrepo "github.com/smallbiznis/perkhub/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

type sentEvent struct {
	userID  string
	event   string
	payload realtime.RedemptionSuccess
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, userID, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	data, _ := json.Marshal(payload)
	var decoded realtime.RedemptionSuccess
	_ = json.Unmarshal(data, &decoded)
	n.events = append(n.events, sentEvent{userID: userID, event: event, payload: decoded})
	return nil
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	benefits benefitdomain.Service
	redeem   domain.Service
	notifier *recordingNotifier
	company  companydomain.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(baseTime)
	log := zap.NewNop()
	notifier := &recordingNotifier{}
	repo := benefitrepo.Provide()

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
		Repo:      repo,
		Users:     userrepo.Provide(),
		Companies: companies,
		Clock:     clk,
		Config:    config.Config{Benefit: config.BenefitConfig{Timezone: "UTC", TokenTTL: 5 * time.Minute}},
	})
	redeem := service.New(service.Params{
		DB:       conn,
		Log:      log,
		Repo:     repo,
		Notifier: notifier,
		Clock:    clk,
	})

	company, err := companies.Create(context.Background(), companydomain.CreateRequest{Name: "Cafe Norte", City: "cordoba"})
	require.NoError(t, err)

	return &fixture{
		t:        t,
		db:       conn,
		node:     node,
		clock:    clk,
		benefits: benefits,
		redeem:   redeem,
		notifier: notifier,
		company:  company,
	}
}

func (f *fixture) seedUser(points int64) userdomain.User {
	f.t.Helper()
	now := f.clock.Now()
	id := f.node.Generate()
	user := userdomain.User{
		ID:        id,
		FirstName: "Lucia",
		LastName:  "Gomez",
		Email:     id.String() + "@example.com",
		Points:    points,
		Role:      userdomain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(f.t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) createBenefit(req benefitdomain.CreateBenefitRequest) benefitdomain.Benefit {
	f.t.Helper()
	req.Company = f.company.ID.String()
	if req.Title == "" {
		req.Title = "Free coffee"
	}
	benefit, err := f.benefits.CreateBenefit(context.Background(), req)
	require.NoError(f.t, err)
	return benefit
}

// claimAndIssue runs the user side of the flow and returns the claim and token.
func (f *fixture) claimAndIssue(benefit benefitdomain.Benefit, user userdomain.User) (benefitdomain.ClaimedBenefit, benefitdomain.RedemptionToken) {
	f.t.Helper()
	ctx := context.Background()
	claim, err := f.benefits.Claim(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(f.t, err)
	token, err := f.benefits.IssueToken(ctx, claim.ID.String(), user.ID.String())
	require.NoError(f.t, err)
	return claim, token
}

func (f *fixture) claimStatus(id snowflake.ID) benefitdomain.ClaimStatus {
	f.t.Helper()
	var status string
	require.NoError(f.t, f.db.Raw(`SELECT status FROM claimed_benefits WHERE id = ?`, id).Scan(&status).Error)
	return benefitdomain.ClaimStatus(status)
}

func (f *fixture) redeemedCount(token string) int64 {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.db.Raw(
		`SELECT COUNT(*) FROM benefit_redemptions WHERE token = ? AND redeemed_at IS NOT NULL`, token,
	).Scan(&count).Error)
	return count
}

func TestClaimTwiceBeforeConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{PointCost: 3000})

	_, err := f.benefits.Claim(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(t, err)

	assert.Equal(t, int64(2000), f.balance(user.ID))

	_, err = f.benefits.Claim(ctx, benefit.ID.String(), user.ID.String())
	assert.ErrorIs(t, err, benefitdomain.ErrAlreadyClaimed)
}

func (f *fixture) balance(id snowflake.ID) int64 {
	f.t.Helper()
	var points int64
	require.NoError(f.t, f.db.Raw(`SELECT points FROM users WHERE id = ?`, id).Scan(&points).Error)
	return points
}

func TestConfirmAfterExpiryIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{PointCost: 3000})
	claim, token := f.claimAndIssue(benefit, user)

	assert.WithinDuration(t, baseTime.Add(5*time.Minute), token.ExpiresAt, time.Second)

	f.clock.Advance(5*time.Minute + time.Second)

	_, err := f.redeem.Present(ctx, token.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	_, err = f.redeem.Confirm(ctx, token.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	assert.Equal(t, benefitdomain.ClaimStatusAvailable, f.claimStatus(claim.ID))
	assert.Zero(t, f.redeemedCount(token.Token))
	assert.Empty(t, f.notifier.sent())
}

func TestConfirmConsumesClaimAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{Title: "Coffee", PointCost: 3000})
	claim, token := f.claimAndIssue(benefit, user)

	detail, err := f.redeem.Present(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", detail.BenefitTitle)
	assert.Equal(t, "Cafe Norte", detail.CompanyName)
	assert.Equal(t, "Lucia", detail.UserFirstName)
	assert.Equal(t, "Gomez", detail.UserLastName)

	confirmation, err := f.redeem.Confirm(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, confirmation.ClaimedBenefitID)
	assert.Equal(t, benefit.ID, confirmation.BenefitID)

	assert.Equal(t, benefitdomain.ClaimStatusUsed, f.claimStatus(claim.ID))
	assert.Equal(t, int64(1), f.redeemedCount(token.Token))

	require.Eventually(t, func() bool { return len(f.notifier.sent()) == 1 }, time.Second, 10*time.Millisecond)
	sent := f.notifier.sent()[0]
	assert.Equal(t, user.ID.String(), sent.userID)
	assert.Equal(t, realtime.EventRedemptionSuccess, sent.event)
	assert.Equal(t, benefit.ID.String(), sent.payload.BenefitID)
	assert.Equal(t, claim.ID.String(), sent.payload.ClaimedID)
	assert.Equal(t, `Your benefit "Coffee" has been redeemed.`, sent.payload.Message)

	_, err = f.redeem.Confirm(ctx, token.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	_, err = f.redeem.Present(ctx, token.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestDailyLimitBlocksThirdCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{
		UsageLimit:  2,
		LimitPeriod: benefitdomain.LimitPeriodDaily,
	})

	for i := 0; i < 2; i++ {
		_, token := f.claimAndIssue(benefit, user)
		_, err := f.redeem.Confirm(ctx, token.Token)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	claim, err := f.benefits.Claim(ctx, benefit.ID.String(), user.ID.String())
	require.NoError(t, err)
	_, err = f.benefits.IssueToken(ctx, claim.ID.String(), user.ID.String())
	require.ErrorIs(t, err, benefitdomain.ErrUsageLimitReached)

	var limitErr *benefitdomain.UsageLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, benefitdomain.LimitPeriodDaily, limitErr.Period)

	// The next local day opens a fresh window.
	f.clock.Set(time.Date(2025, time.March, 13, 0, 0, 0, 0, time.UTC))
	_, err = f.benefits.IssueToken(ctx, claim.ID.String(), user.ID.String())
	require.NoError(t, err)
}

func TestConcurrentConfirmSingleWinner(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{})
	claim, token := f.claimAndIssue(benefit, user)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.redeem.Confirm(context.Background(), token.Token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrTokenInvalid):
				invalid++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, invalid)
	assert.Equal(t, benefitdomain.ClaimStatusUsed, f.claimStatus(claim.ID))
	require.Eventually(t, func() bool { return len(f.notifier.sent()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSecondTokenForConsumedClaimIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{UsageLimit: 5})
	claim, first := f.claimAndIssue(benefit, user)

	second, err := f.benefits.IssueToken(ctx, claim.ID.String(), user.ID.String())
	require.NoError(t, err)

	_, err = f.redeem.Confirm(ctx, first.Token)
	require.NoError(t, err)

	_, err = f.redeem.Confirm(ctx, second.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.Zero(t, f.redeemedCount(second.Token))
}

func TestConfirmLegacyTokenWithoutClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{})

	legacy := benefitdomain.BenefitRedemption{
		ID:        f.node.Generate(),
		Token:     "0123456789abcdef0123456789abcdef01234567",
		ExpiresAt: baseTime.Add(5 * time.Minute),
		BenefitID: benefit.ID,
		UserID:    user.ID,
		CreatedAt: baseTime,
	}
	require.NoError(t, f.db.Create(&legacy).Error)

	_, err := f.redeem.Confirm(ctx, legacy.Token)
	assert.ErrorIs(t, err, domain.ErrTokenNotAssociatedWithClaim)
	assert.Zero(t, f.redeemedCount(legacy.Token))
}

func TestNotificationFailureDoesNotFailConfirm(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{})
	claim, token := f.claimAndIssue(benefit, user)

	_, err := f.redeem.Confirm(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, benefitdomain.ClaimStatusUsed, f.claimStatus(claim.ID))
}

func TestUnknownTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "deadbeef", string(make([]byte, 80))} {
		_, err := f.redeem.Present(ctx, token)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		_, err = f.redeem.Confirm(ctx, token)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	}
}

// slowLockRepo moves the clock forward while the redemption row lock is held,
// as if the confirm had queued behind another transaction.
type slowLockRepo struct {
	benefitdomain.Repository
	clock *clock.FakeClock
	wait  time.Duration
}

func (r slowLockRepo) LockValidRedemption(ctx context.Context, db *gorm.DB, token string, now time.Time) (*benefitdomain.BenefitRedemption, error) {
	redemption, err := r.Repository.LockValidRedemption(ctx, db, token, now)
	r.clock.Advance(r.wait)
	return redemption, err
}

func TestConfirmRechecksExpiryOnceLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(5000)
	benefit := f.createBenefit(benefitdomain.CreateBenefitRequest{PointCost: 3000})
	claim, token := f.claimAndIssue(benefit, user)

	f.clock.Advance(4*time.Minute + 50*time.Second)
	redeem := service.New(service.Params{
		DB:       f.db,
		Log:      zap.NewNop(),
		Repo:     slowLockRepo{Repository: benefitrepo.Provide(), clock: f.clock, wait: 30 * time.Second},
		Notifier: f.notifier,
		Clock:    f.clock,
	})

	_, err := redeem.Confirm(ctx, token.Token)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	assert.Equal(t, benefitdomain.ClaimStatusAvailable, f.claimStatus(claim.ID))
	assert.Zero(t, f.redeemedCount(token.Token))
	assert.Empty(t, f.notifier.sent())
}
