package seed

import (
	"context"
	"errors"
	"strings"

	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	"github.com/smallbiznis/perkhub/internal/config"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Users    userdomain.Service
	UserRepo userdomain.Repository
	Benefits benefitdomain.Service
}

// Run applies the configured bootstrap data. Every step is idempotent.
func Run(p Params) error {
	if p.DB == nil {
		return errors.New("seed database handle is required")
	}
	ctx := context.Background()
	log := p.Log.Named("seed")

	if err := EnsureAdmin(ctx, p.DB, p.Users, p.UserRepo, p.Config.Seed, log); err != nil {
		return err
	}
	return EnsureCategories(ctx, p.Benefits, p.Config.Seed.Categories, log)
}

// EnsureAdmin creates the bootstrap admin unless a user with that email already exists.
// An existing account is never promoted.
func EnsureAdmin(ctx context.Context, db *gorm.DB, users userdomain.Service, repo userdomain.Repository, cfg config.SeedConfig, log *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}

	existing, err := repo.FindByEmail(ctx, db, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != userdomain.RoleAdmin {
			log.Warn("seed admin email belongs to a non-admin user",
				zap.String("user_id", existing.ID.String()),
			)
		}
		return nil
	}

	admin, err := users.Register(ctx, userdomain.RegisterRequest{
		FirstName: cfg.AdminFirstName,
		LastName:  cfg.AdminLastName,
		Email:     email,
		City:      cfg.AdminCity,
		Role:      userdomain.RoleAdmin,
	})
	if errors.Is(err, userdomain.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("seeded admin user", zap.String("user_id", admin.ID.String()))
	return nil
}

// EnsureCategories creates any missing categories from names.
func EnsureCategories(ctx context.Context, benefits benefitdomain.Service, names []string, log *zap.Logger) error {
	created := 0
	for _, name := range names {
		_, err := benefits.CreateCategory(ctx, name)
		if errors.Is(err, benefitdomain.ErrCategoryExists) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		log.Info("seeded categories", zap.Int("count", created))
	}
	return nil
}
