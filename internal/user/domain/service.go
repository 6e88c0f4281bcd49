package domain

import (
	"context"
	"errors"
)

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	City      string `json:"city"`
	Role      Role   `json:"role"`
}

type Service interface {
	// Register creates a user credited with the configured signup grant.
	Register(ctx context.Context, req RegisterRequest) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrEmailTaken   = errors.New("email_taken")
	ErrNotFound     = errors.New("not_found")
)
