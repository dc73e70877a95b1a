// Package domain defines the audit record kept for every processed
// billing webhook delivery.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BillingEvent is one processed delivery. Rows are append-only and exist
// for auditing; the reconciler never reads them back. The unique index on
// the provider event id keeps redeliveries from piling up duplicate rows.
type BillingEvent struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_billing_events_provider_event"`
	EventType       string         `gorm:"type:text;not null"`
	AccountID       snowflake.ID   `gorm:"not null;index"`
	SubscriptionID  string         `gorm:"type:text"`
	Outcome         string         `gorm:"type:text;not null"`
	Strategy        string         `gorm:"type:text"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEvent) TableName() string { return "billing_events" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *BillingEvent) error
}
