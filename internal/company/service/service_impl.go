package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/perkhub/internal/clock"
	"github.com/smallbiznis/perkhub/internal/company/domain"
	"github.com/smallbiznis/perkhub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Company{}, domain.ErrInvalidName
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		return domain.Company{}, domain.ErrInvalidCity
	}

	var adminID *snowflake.ID
	if raw := strings.TrimSpace(req.AdminID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.Company{}, domain.ErrInvalidID
		}
		adminID = &id
	}

	now := s.clock.Now()
	company := domain.Company{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name + " " + city),
		City:      city,
		LogoURL:   strings.TrimSpace(req.LogoURL),
		AdminID:   adminID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &company); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Company{}, domain.ErrSlugTaken
		}
		return domain.Company{}, err
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("slug", company.Slug),
	)
	return company, nil
}

func (s *Service) List(ctx context.Context, city string) ([]domain.Company, error) {
	return s.repo.List(ctx, s.db, strings.TrimSpace(city))
}

func (s *Service) Resolve(ctx context.Context, idOrName string) (domain.Company, error) {
	value := strings.TrimSpace(idOrName)
	if value == "" {
		return domain.Company{}, domain.ErrNotFound
	}

	if id, err := snowflake.ParseString(value); err == nil && id != 0 {
		company, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Company{}, err
		}
		if company != nil {
			return *company, nil
		}
	}

	company, err := s.repo.FindByName(ctx, s.db, value)
	if err != nil {
		return domain.Company{}, err
	}
	if company == nil {
		return domain.Company{}, domain.ErrNotFound
	}
	return *company, nil
}
