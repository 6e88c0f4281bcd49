package domain

import (
	"context"
	"errors"
)

type CreateRequest struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	LogoURL string `json:"logo_url"`
	AdminID string `json:"admin_id"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Company, error)
	List(ctx context.Context, city string) ([]Company, error)
	// Resolve finds a company by snowflake id, falling back to an exact name match.
	Resolve(ctx context.Context, idOrName string) (Company, error)
}

var (
	ErrInvalidID   = errors.New("invalid_id")
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidCity = errors.New("invalid_city")
	ErrSlugTaken   = errors.New("company_exists")
	ErrNotFound    = errors.New("company_not_found")
)
