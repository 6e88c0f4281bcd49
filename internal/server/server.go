package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/perkhub/internal/audit/domain"
	"github.com/smallbiznis/perkhub/internal/auth"
	"github.com/smallbiznis/perkhub/internal/authorization"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/observability"
	obsmiddleware "github.com/smallbiznis/perkhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/perkhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/perkhub/internal/observability/tracing"
	"github.com/smallbiznis/perkhub/internal/ratelimit"
	"github.com/smallbiznis/perkhub/internal/realtime"
	redeemdomain "github.com/smallbiznis/perkhub/internal/redeem/domain"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultHTTPAddr = ":8080"

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = defaultHTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	tokens       *auth.Issuer
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	benefitSvc   benefitdomain.Service
	companySvc   companydomain.Service
	userSvc      userdomain.Service
	redeemSvc    redeemdomain.Service
	hub          *realtime.Hub
	obsMetrics   *obsmetrics.Metrics
	redeemLimits *ratelimit.RedeemLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Tokens       *auth.Issuer
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	BenefitSvc   benefitdomain.Service
	CompanySvc   companydomain.Service
	UserSvc      userdomain.Service
	RedeemSvc    redeemdomain.Service
	Hub          *realtime.Hub            `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics      `optional:"true"`
	RedeemLimits *ratelimit.RedeemLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		tokens:       p.Tokens,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		benefitSvc:   p.BenefitSvc,
		companySvc:   p.CompanySvc,
		userSvc:      p.UserSvc,
		redeemSvc:    p.RedeemSvc,
		hub:          p.Hub,
		obsMetrics:   p.ObsMetrics,
		redeemLimits: p.RedeemLimits,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterRedeemRoutes()
	s.RegisterRealtimeRoutes()
	s.RegisterAdminRoutes()
	s.RegisterFallback()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Catalog --------
	api.GET("/benefits", s.ListBenefits)
	api.GET("/benefits/:id", s.GetBenefit)
	api.GET("/benefits/:id/my-redemption", s.GetMyRedemption)
	api.POST("/benefits/:id/claim", s.ClaimBenefit)

	// -------- Claimed benefits --------
	api.GET("/claimed-benefits", s.ListClaimedBenefits)
	api.GET("/claimed-benefits/:id", s.GetClaimedBenefit)
	api.POST("/claimed-benefits/:id/generate-qr", s.GenerateRedemptionToken)

	api.GET("/redemptions/history", s.ListRedemptionHistory)
	api.GET("/users/me", s.Me)
}

// RegisterRedeemRoutes exposes the merchant-facing endpoints. They carry no
// bearer token; possession of the redemption token is the credential.
func (s *Server) RegisterRedeemRoutes() {
	redeem := s.engine.Group("/api/redeem", s.RedeemRateLimit())
	redeem.GET("/:token", s.PresentRedemption)
	redeem.POST("/:token", s.ConfirmRedemption)
}

func (s *Server) RegisterRealtimeRoutes() {
	rt := s.engine.Group("/api/realtime")
	rt.GET("/ws", s.RealtimeWebSocket)
	rt.GET("/stream", s.AuthRequired(), s.StreamRealtimeEvents)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AuthRequired())

	// -------- Companies --------
	admin.GET("/companies", s.authorizeAction(authorization.ObjectCompany, authorization.ActionView), s.AdminListCompanies)
	admin.POST("/companies", s.authorizeAction(authorization.ObjectCompany, authorization.ActionCreate), s.AdminCreateCompany)

	// -------- Benefits --------
	admin.GET("/benefits", s.authorizeAction(authorization.ObjectBenefit, authorization.ActionView), s.AdminListBenefits)
	admin.POST("/benefits", s.authorizeAction(authorization.ObjectBenefit, authorization.ActionCreate), s.AdminCreateBenefit)
	admin.PATCH("/benefits/:id", s.authorizeAction(authorization.ObjectBenefit, authorization.ActionUpdate), s.AdminUpdateBenefit)
	admin.DELETE("/benefits/:id", s.authorizeAction(authorization.ObjectBenefit, authorization.ActionDelete), s.AdminDeleteBenefit)

	// -------- Categories --------
	admin.GET("/categories", s.authorizeAction(authorization.ObjectCategory, authorization.ActionView), s.AdminListCategories)
	admin.POST("/categories", s.authorizeAction(authorization.ObjectCategory, authorization.ActionCreate), s.AdminCreateCategory)

	// -------- Users --------
	admin.POST("/users", s.authorizeAction(authorization.ObjectUser, authorization.ActionCreate), s.AdminCreateUser)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorizeAction(authorization.ObjectAudit, authorization.ActionView), s.AdminListAuditLogs)
}

func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
