package repository

import (
	"context"

	"github.com/vocaldesk/vocaldesk/internal/billingevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.BillingEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_events (id, provider_event_id, event_type, account_id, subscription_id, outcome, strategy, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.ProviderEventID,
		event.EventType,
		event.AccountID,
		event.SubscriptionID,
		event.Outcome,
		event.Strategy,
		event.Payload,
		event.CreatedAt,
	).Error
}
