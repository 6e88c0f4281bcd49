package service

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/clock"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	"github.com/smallbiznis/perkhub/internal/config"
	"github.com/smallbiznis/perkhub/internal/observability/metrics"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultTokenTTL     = 5 * time.Minute
	historyLimit        = 50
	tokenEntropyBytes   = 20
	maxTokenInsertTries = 3
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Users     userdomain.Repository
	Companies companydomain.Service
	Clock     clock.Clock
	Config    config.Config
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	users     userdomain.Repository
	companies companydomain.Service
	clock     clock.Clock
	metrics   *metrics.Metrics
	loc       *time.Location
	tokenTTL  time.Duration
}

func New(p Params) domain.Service {
	ttl := p.Config.Benefit.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("benefit.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		users:     p.Users,
		companies: p.Companies,
		clock:     p.Clock,
		metrics:   p.Metrics,
		loc:       p.Config.Benefit.Location(),
		tokenTTL:  ttl,
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func benefitIDs(items []domain.CatalogItem) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
