package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Company, error)
	List(ctx context.Context, db *gorm.DB, city string) ([]Company, error)
}
