// Package domain contains the mapping between provider-side customers and
// internal accounts. The mapping is consulted only when a webhook event's
// subscription id is not yet resolvable locally.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Mapping associates a billing-provider customer id and/or billing email
// with an internal account.
type Mapping struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	AccountID          snowflake.ID `gorm:"not null;index"`
	ProviderCustomerID string       `gorm:"type:text;not null;uniqueIndex"`
	Email              string       `gorm:"type:text;index"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Mapping) TableName() string { return "customer_mappings" }
