// Package domain contains persistence models for internal accounts.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Account is one tenant of the dashboard. Billing state hangs off it.
type Account struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null" json:"name"`
	Email     string            `gorm:"not null;index" json:"email"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

var ErrNotFound = errors.New("account_not_found")
