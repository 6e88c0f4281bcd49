package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"column:first_name;not null" json:"first_name"`
	LastName  string       `gorm:"column:last_name;not null" json:"last_name"`
	Email     string       `gorm:"not null;uniqueIndex" json:"email"`
	City      string       `gorm:"not null;default:''" json:"city"`
	Points    int64        `gorm:"not null;default:0" json:"points"`
	Role      Role         `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
