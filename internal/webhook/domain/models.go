// Package domain defines the inbound billing webhook contract: the event
// envelope, the set of event types the pipeline accepts, and the errors
// each pipeline stage can surface.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
)

// EventType identifies what happened on the provider side.
type EventType string

const (
	EventSubscriptionCreated       EventType = "subscription.created"
	EventSubscriptionUpdated       EventType = "subscription.updated"
	EventSubscriptionActivated     EventType = "subscription.activated"
	EventSubscriptionCanceled      EventType = "subscription.canceled"
	EventSubscriptionDeleted       EventType = "subscription.deleted"
	EventSubscriptionPaused        EventType = "subscription.paused"
	EventSubscriptionPaymentFailed EventType = "subscription.payment_failed"
)

// processedEvents is the allow-list of event types the pipeline applies to
// subscription state.
var processedEvents = map[EventType]struct{}{
	EventSubscriptionCreated:       {},
	EventSubscriptionUpdated:       {},
	EventSubscriptionActivated:     {},
	EventSubscriptionCanceled:      {},
	EventSubscriptionDeleted:       {},
	EventSubscriptionPaused:        {},
	EventSubscriptionPaymentFailed: {},
}

// ignoredEvents are event types the provider is known to send but that
// carry nothing the reconciler needs. They are acknowledged so the
// provider stops retrying them.
var ignoredEvents = map[EventType]struct{}{
	"subscription.resumed":  {},
	"subscription.trialing": {},
	"transaction.completed": {},
	"customer.updated":      {},
}

// Processed reports whether the event type mutates subscription state.
func (t EventType) Processed() bool {
	_, ok := processedEvents[t]
	return ok
}

// Ignored reports whether the event type is a recognized no-op.
func (t EventType) Ignored() bool {
	_, ok := ignoredEvents[t]
	return ok
}

// Envelope is the decoded webhook body.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       EventData `json:"data"`
}

// EventData is the subscription snapshot inside the envelope. Pointer
// fields are omitted by the provider when not applicable.
type EventData struct {
	ID                   string     `json:"id"`
	Status               string     `json:"status"`
	CustomerID           string     `json:"customer_id"`
	Items                []Item     `json:"items"`
	CurrentBillingPeriod *Period    `json:"current_billing_period"`
	TrialDates           *Period    `json:"trial_dates"`
	StartedAt            *time.Time `json:"started_at"`
	FirstBilledAt        *time.Time `json:"first_billed_at"`
	NextBilledAt         *time.Time `json:"next_billed_at"`
	PausedAt             *time.Time `json:"paused_at"`
	CanceledAt           *time.Time `json:"canceled_at"`
	EndedAt              *time.Time `json:"ended_at"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CustomData           CustomData `json:"custom_data"`
}

type Item struct {
	Price    Price `json:"price"`
	Quantity int   `json:"quantity"`
}

type Price struct {
	ID string `json:"id"`
}

type Period struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// CustomData carries fields the dashboard attached at checkout.
type CustomData struct {
	Email string `json:"email"`
}

// PriceID returns the first line item's price id, which is the plan price
// for single-item subscriptions.
func (d EventData) PriceID() string {
	if len(d.Items) == 0 {
		return ""
	}
	return d.Items[0].Price.ID
}

// Quantity returns the first line item's quantity, defaulting to one.
func (d EventData) Quantity() int {
	if len(d.Items) == 0 || d.Items[0].Quantity <= 0 {
		return 1
	}
	return d.Items[0].Quantity
}

// Result reports what the pipeline did with one delivery.
type Result struct {
	EventID        string
	EventType      EventType
	Outcome        subscriptiondomain.Outcome
	SubscriptionID string
	AccountID      snowflake.ID
	Strategy       string
}

// Service runs the full ingestion pipeline for one raw delivery:
// authenticate, validate, resolve the account, reconcile state, and queue
// side effects.
type Service interface {
	Process(ctx context.Context, raw []byte, signature, timestamp string) (*Result, error)
}

var (
	// ErrSecretNotConfigured means the shared webhook secret is absent
	// from configuration; no delivery can be authenticated.
	ErrSecretNotConfigured = errors.New("webhook_secret_not_configured")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrInvalidTimestamp    = errors.New("invalid_timestamp")
	ErrStaleTimestamp      = errors.New("stale_timestamp")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrUnsupportedEvent    = errors.New("unsupported_event_type")
	ErrMissingField        = errors.New("missing_required_field")
	// ErrEventIgnored marks a recognized no-op event; the HTTP layer
	// acknowledges it with a success status.
	ErrEventIgnored = errors.New("event_ignored")
)
