package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Company struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	Slug      string        `gorm:"not null;uniqueIndex" json:"slug"`
	City      string        `gorm:"not null;index" json:"city"`
	LogoURL   string        `gorm:"column:logo_url;not null;default:''" json:"logo_url"`
	AdminID   *snowflake.ID `gorm:"column:admin_id" json:"admin_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }
