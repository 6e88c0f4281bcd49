package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepo "github.com/smallbiznis/perkhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/perkhub/internal/audit/service"
	"github.com/smallbiznis/perkhub/internal/auth"
	"github.com/smallbiznis/perkhub/internal/authorization"
	benefitrepo "github.com/smallbiznis/perkhub/internal/benefit/repository"
	benefitservice "github.com/smallbiznis/perkhub/internal/benefit/service"
	"github.com/smallbiznis/perkhub/internal/clock"
	companyrepo "github.com/smallbiznis/perkhub/internal/company/repository"
	companyservice "github.com/smallbiznis/perkhub/internal/company/service"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/migration/migrationtest"
	"github.com/smallbiznis/perkhub/internal/observability"
	"github.com/smallbiznis/perkhub/internal/realtime"
	redeemservice "github.com/smallbiznis/perkhub/internal/redeem/service"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	userrepo "github.com/smallbiznis/perkhub/internal/user/repository"
	userservice "github.com/smallbiznis/perkhub/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	hub    *realtime.Hub
	tokens *auth.Issuer
	users  userdomain.Service
	clock  *clock.FakeClock
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error errorPayload    `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(baseTime)
	log := zap.NewNop()
	cfg := config.Config{
		AppName:       "perkhub",
		AuthJWTSecret: "server-test-secret",
		Benefit: config.BenefitConfig{
			Timezone:     "UTC",
			TokenTTL:     5 * time.Minute,
			SignupPoints: 4000,
		},
	}

	tokens, err := auth.NewIssuer(cfg, clk)
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer})

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
	repo := benefitrepo.Provide()
	benefits := benefitservice.New(benefitservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      repo,
		Users:     userrepo.Provide(),
		Companies: companies,
		Clock:     clk,
		Config:    cfg,
	})
	audits := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	})
	hub := realtime.NewHub()
	redeem := redeemservice.New(redeemservice.Params{
		DB:       conn,
		Log:      log,
		Repo:     repo,
		Notifier: hub,
		Clock:    clk,
	})

	srv := NewServer(ServerParams{
		Gin:        NewEngine(observability.Config{Environment: "test"}, nil),
		Cfg:        cfg,
		Log:        log,
		Tokens:     tokens,
		AuthzSvc:   authz,
		AuditSvc:   audits,
		BenefitSvc: benefits,
		CompanySvc: companies,
		UserSvc:    users,
		RedeemSvc:  redeem,
		Hub:        hub,
	})
	registerRoutes(srv)

	return &testServer{
		t:      t,
		engine: srv.Engine(),
		hub:    hub,
		tokens: tokens,
		users:  users,
		clock:  clk,
	}
}

func (ts *testServer) register(email string, role userdomain.Role) (userdomain.User, string) {
	ts.t.Helper()
	user, err := ts.users.Register(context.Background(), userdomain.RegisterRequest{
		FirstName: "Lucia",
		LastName:  "Gomez",
		Email:     email,
		City:      "cordoba",
		Role:      role,
	})
	require.NoError(ts.t, err)
	token, err := ts.tokens.Sign(user.ID, user.Role)
	require.NoError(ts.t, err)
	return user, token
}

func (ts *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// seedCatalog creates a company and one benefit through the admin API and returns the benefit id.
func (ts *testServer) seedCatalog(adminToken string, pointCost int64) string {
	ts.t.Helper()
	w, _ := ts.do(http.MethodPost, "/admin/companies", adminToken, gin.H{"name": "Cafe Norte", "city": "cordoba"})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = ts.do(http.MethodPost, "/admin/categories", adminToken, gin.H{"name": "Food"})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	w, env := ts.do(http.MethodPost, "/admin/benefits", adminToken, gin.H{
		"company":      "Cafe Norte",
		"title":        "Free coffee",
		"point_cost":   pointCost,
		"usage_limit":  1,
		"limit_period": "LIFETIME",
		"categories":   []string{"Food"},
	})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	var benefit struct {
		ID string `json:"id"`
	}
	require.NoError(ts.t, json.Unmarshal(env.Data, &benefit))
	require.NotEmpty(ts.t, benefit.ID)
	return benefit.ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", env.Error.Type)

	w, _ = ts.do(http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReturnsPoints(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register("me@example.com", userdomain.RoleUser)

	w, env := ts.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		Points int64  `json:"points"`
		City   string `json:"city"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, int64(4000), me.Points)
	assert.Equal(t, "cordoba", me.City)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	ts := newTestServer(t)
	_, memberToken := ts.register("member@example.com", userdomain.RoleUser)

	w, env := ts.do(http.MethodPost, "/admin/companies", memberToken, gin.H{"name": "Cafe Norte", "city": "cordoba"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Error.Type)
}

func TestAdminValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register("admin@example.com", userdomain.RoleAdmin)

	w, env := ts.do(http.MethodPost, "/admin/categories", adminToken, gin.H{"name": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "invalid_category", env.Error.Errors[0].Code)
}

func TestClaimRedeemFlow(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register("admin@example.com", userdomain.RoleAdmin)
	user, token := ts.register("user@example.com", userdomain.RoleUser)
	benefitID := ts.seedCatalog(adminToken, 1500)

	w, env := ts.do(http.MethodGet, "/api/benefits", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var catalog []struct {
		ID     string `json:"id"`
		IsUsed bool   `json:"is_used"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &catalog))
	require.Len(t, catalog, 1)
	assert.Equal(t, benefitID, catalog[0].ID)
	assert.False(t, catalog[0].IsUsed)

	w, env = ts.do(http.MethodPost, "/api/benefits/"+benefitID+"/claim", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &claim))

	w, env = ts.do(http.MethodPost, "/api/benefits/"+benefitID+"/claim", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_claimed", env.Error.Type)

	w, env = ts.do(http.MethodPost, "/api/claimed-benefits/"+claim.ID+"/generate-qr", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.Len(t, issued.Token, 40)

	w, env = ts.do(http.MethodGet, "/api/benefits/"+benefitID+"/my-redemption", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), issued.Token)

	w, env = ts.do(http.MethodGet, "/api/redeem/"+issued.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var presented struct {
		BenefitTitle  string `json:"benefit_title"`
		CompanyName   string `json:"company_name"`
		UserFirstName string `json:"user_first_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &presented))
	assert.Equal(t, "Free coffee", presented.BenefitTitle)
	assert.Equal(t, "Cafe Norte", presented.CompanyName)
	assert.Equal(t, "Lucia", presented.UserFirstName)

	sub, err := ts.hub.Subscribe(user.ID.String())
	require.NoError(t, err)
	defer sub.Close()

	w, _ = ts.do(http.MethodPost, "/api/redeem/"+issued.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.EventRedemptionSuccess, event.Name)
		var payload realtime.RedemptionSuccess
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, benefitID, payload.BenefitID)
		assert.Contains(t, payload.Message, "Free coffee")
	case <-time.After(2 * time.Second):
		t.Fatal("expected redemption notification")
	}

	w, env = ts.do(http.MethodPost, "/api/redeem/"+issued.Token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "token_invalid", env.Error.Type)
	assert.Equal(t, invalidTokenMessage, env.Error.Message)

	w, env = ts.do(http.MethodGet, "/api/redemptions/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []struct {
		BenefitTitle string `json:"benefit_title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Free coffee", history[0].BenefitTitle)

	w, env = ts.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Points int64 `json:"points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, int64(2500), me.Points)
}

func TestClaimInsufficientPointsMessage(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register("admin@example.com", userdomain.RoleAdmin)
	_, token := ts.register("user@example.com", userdomain.RoleUser)
	benefitID := ts.seedCatalog(adminToken, 5000)

	w, env := ts.do(http.MethodPost, "/api/benefits/"+benefitID+"/claim", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_points", env.Error.Type)
	assert.Equal(t, "You have 4000 points and this benefit costs 5000.", env.Error.Message)
}

func TestRedeemUnknownAndExpiredTokensLookAlike(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.register("admin@example.com", userdomain.RoleAdmin)
	_, token := ts.register("user@example.com", userdomain.RoleUser)
	benefitID := ts.seedCatalog(adminToken, 0)

	_, env := ts.do(http.MethodPost, "/api/benefits/"+benefitID+"/claim", token, nil)
	var claim struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	_, env = ts.do(http.MethodPost, "/api/claimed-benefits/"+claim.ID+"/generate-qr", token, nil)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))

	ts.clock.Advance(6 * time.Minute)

	wExpired, envExpired := ts.do(http.MethodGet, "/api/redeem/"+issued.Token, "", nil)
	wUnknown, envUnknown := ts.do(http.MethodGet, "/api/redeem/deadbeef", "", nil)
	assert.Equal(t, http.StatusNotFound, wExpired.Code)
	assert.Equal(t, wExpired.Code, wUnknown.Code)
	assert.Equal(t, envExpired.Error, envUnknown.Error)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestAdminActionsAreAudited(t *testing.T) {
	ts := newTestServer(t)
	admin, adminToken := ts.register("audit-admin@example.com", userdomain.RoleAdmin)
	_, memberToken := ts.register("audit-member@example.com", userdomain.RoleUser)
	benefitID := ts.seedCatalog(adminToken, 100)

	w, env := ts.do(http.MethodGet, "/admin/audit-logs?page_size=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page struct {
		HasMore   bool `json:"has_more"`
		AuditLogs []struct {
			Action     string `json:"action"`
			TargetType string `json:"target_type"`
			TargetID   string `json:"target_id"`
			ActorID    string `json:"actor_id"`
		} `json:"audit_logs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.AuditLogs, 2)
	assert.True(t, page.HasMore)

	var benefitEntry bool
	for _, entry := range page.AuditLogs {
		assert.Equal(t, admin.ID.String(), entry.ActorID)
		if entry.Action == "benefit.create" {
			benefitEntry = true
			assert.Equal(t, "benefit", entry.TargetType)
			assert.Equal(t, benefitID, entry.TargetID)
		}
	}
	assert.True(t, benefitEntry)

	w, _ = ts.do(http.MethodGet, "/admin/audit-logs", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = ts.do(http.MethodGet, "/admin/audit-logs?page_token=%25%25", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error.Type)
}
