package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vocaldesk/vocaldesk/internal/config"
)

// Outcome discriminates what the reconciler did with an event.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeMerged  Outcome = "merged"
)

// ApplyRequest carries the event fields the reconciler writes. Nil pointer
// fields were absent from the event and must not disturb stored values.
type ApplyRequest struct {
	SubscriptionID     string
	AccountID          snowflake.ID
	Status             Status
	PriceID            string
	Quantity           int
	CancelAtPeriodEnd  bool
	PeriodStart        *time.Time
	PeriodEnd          *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	PausedAt           *time.Time
	CanceledAt         *time.Time
	EndedAt            *time.Time
	ProviderCustomerID string
}

// ApplyResult reports the reconciliation outcome. PreviousStatus is empty
// when no prior row existed.
type ApplyResult struct {
	Outcome        Outcome
	SubscriptionID string
	AccountID      snowflake.ID
	PreviousStatus Status
	Status         Status
	Tier           config.Tier
}

// EnteredNegative reports whether this event moved the subscription into a
// negative state it was not in before.
func (r *ApplyResult) EnteredNegative() bool {
	return r.Status.Negative() && r.PreviousStatus != r.Status
}

// Service is the state reconciler: it applies one event atomically to the
// canonical record, regardless of delivery order.
type Service interface {
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
}

var (
	ErrInvalidSubscriptionID = errors.New("invalid_subscription_id")
	ErrInvalidAccount        = errors.New("invalid_account")
	ErrInvalidStatus         = errors.New("invalid_status")
)
