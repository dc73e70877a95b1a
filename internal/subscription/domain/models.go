// Package domain contains the canonical subscription record and the
// reconciliation contract that applies provider webhook events to it.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vocaldesk/vocaldesk/internal/config"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	// StatusPending marks a placeholder row created at checkout, before the
	// provider has confirmed anything.
	StatusPending  Status = "pending"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusDeleted  Status = "deleted"
)

// Terminal reports whether the status ends the subscription's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusDeleted
}

// Negative reports whether entering the status must release provisioned
// resources (terminal states plus past_due).
func (s Status) Negative() bool {
	return s.Terminal() || s == StatusPastDue
}

// Open reports whether the row is a live candidate for heuristic
// resolution: checkout placeholders and anything the provider still bills.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusTrialing, StatusActive:
		return true
	default:
		return false
	}
}

// ParseStatus validates a provider-declared status value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusTrialing:
		return StatusTrialing, true
	case StatusActive:
		return StatusActive, true
	case StatusPaused:
		return StatusPaused, true
	case StatusPastDue:
		return StatusPastDue, true
	case StatusCanceled:
		return StatusCanceled, true
	case StatusDeleted:
		return StatusDeleted, true
	default:
		return "", false
	}
}

// PlaceholderPrefix marks subscription ids minted locally during checkout,
// before the provider assigns the authoritative id.
const PlaceholderPrefix = "pending_"

func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), PlaceholderPrefix)
}

// Subscription is the canonical billing state for one account. Rows are
// never hard-deleted; terminal states remain as history.
type Subscription struct {
	ID                 string       `gorm:"primaryKey;type:text"`
	AccountID          snowflake.ID `gorm:"not null;index"`
	Status             Status       `gorm:"type:text;not null"`
	PriceID            string       `gorm:"type:text"`
	Tier               config.Tier  `gorm:"type:text;not null"`
	Quantity           int          `gorm:"not null;default:1"`
	CancelAtPeriodEnd  bool         `gorm:"not null;default:false"`
	CurrentPeriodStart *time.Time   `gorm:""`
	CurrentPeriodEnd   *time.Time   `gorm:""`
	TrialStart         *time.Time   `gorm:""`
	TrialEnd           *time.Time   `gorm:""`
	PausedAt           *time.Time   `gorm:""`
	CanceledAt         *time.Time   `gorm:""`
	EndedAt            *time.Time   `gorm:""`
	ProviderCustomerID string       `gorm:"type:text;index"`
	Current            bool         `gorm:"not null;default:false;index"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
