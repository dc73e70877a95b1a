package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, account_id, status, price_id, tier, quantity, cancel_at_period_end,
	 current_period_start, current_period_end, trial_start, trial_end, paused_at, canceled_at,
	 ended_at, provider_customer_id, current, created_at, updated_at`

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(upsertAssignments(db, subscription)),
	}).Create(subscription).Error
}

// upsertAssignments builds the DO UPDATE set for the conflict path. Fields
// the event always carries are overwritten; nullable fields keep the stored
// value unless the incoming row has one. The current flag is left alone so
// an update cannot promote a superseded row.
func upsertAssignments(db *gorm.DB, subscription *subscriptiondomain.Subscription) map[string]interface{} {
	incoming := excludedColumn
	if db != nil && strings.EqualFold(db.Dialector.Name(), "mysql") {
		incoming = valuesColumn
	}

	preserveNull := func(col string) clause.Expr {
		return gorm.Expr("COALESCE(" + incoming(col) + ", " + col + ")")
	}
	preserveEmpty := func(col string) clause.Expr {
		return gorm.Expr("COALESCE(NULLIF(" + incoming(col) + ", ''), " + col + ")")
	}

	return map[string]interface{}{
		"status":               subscription.Status,
		"tier":                 subscription.Tier,
		"quantity":             subscription.Quantity,
		"cancel_at_period_end": subscription.CancelAtPeriodEnd,
		"updated_at":           subscription.UpdatedAt,
		"price_id":             preserveEmpty("price_id"),
		"provider_customer_id": preserveEmpty("provider_customer_id"),
		"current_period_start": preserveNull("current_period_start"),
		"current_period_end":   preserveNull("current_period_end"),
		"trial_start":          preserveNull("trial_start"),
		"trial_end":            preserveNull("trial_end"),
		"paused_at":            preserveNull("paused_at"),
		"canceled_at":          preserveNull("canceled_at"),
		"ended_at":             preserveNull("ended_at"),
	}
}

func excludedColumn(col string) string { return "excluded." + col }

func valuesColumn(col string) string { return "VALUES(" + col + ")" }

func (r *repo) Reidentify(ctx context.Context, db *gorm.DB, accountID snowflake.ID, oldID string, subscription *subscriptiondomain.Subscription) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			id = ?,
			status = ?,
			price_id = CASE WHEN ? = '' THEN price_id ELSE ? END,
			tier = ?,
			quantity = ?,
			cancel_at_period_end = ?,
			current_period_start = COALESCE(?, current_period_start),
			current_period_end = COALESCE(?, current_period_end),
			trial_start = COALESCE(?, trial_start),
			trial_end = COALESCE(?, trial_end),
			paused_at = COALESCE(?, paused_at),
			canceled_at = COALESCE(?, canceled_at),
			ended_at = COALESCE(?, ended_at),
			provider_customer_id = CASE WHEN ? = '' THEN provider_customer_id ELSE ? END,
			updated_at = ?
		 WHERE id = ? AND account_id = ?`,
		subscription.ID,
		subscription.Status,
		subscription.PriceID,
		subscription.PriceID,
		subscription.Tier,
		subscription.Quantity,
		subscription.CancelAtPeriodEnd,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.TrialStart,
		subscription.TrialEnd,
		subscription.PausedAt,
		subscription.CanceledAt,
		subscription.EndedAt,
		subscription.ProviderCustomerID,
		subscription.ProviderCustomerID,
		subscription.UpdatedAt,
		oldID,
		accountID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) DemoteCurrentExcept(ctx context.Context, db *gorm.DB, accountID snowflake.ID, keepID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET current = ?
		 WHERE account_id = ? AND id <> ? AND current = ?`,
		false,
		accountID,
		keepID,
		true,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE id = ?`,
		strings.TrimSpace(id),
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == "" {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindCurrentByAccountID(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE account_id = ? AND current = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		accountID,
		true,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == "" {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByProviderCustomerID(ctx context.Context, db *gorm.DB, providerCustomerID string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE provider_customer_id = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		strings.TrimSpace(providerCustomerID),
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == "" {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListRecentOpen(ctx context.Context, db *gorm.DB, limit int) ([]subscriptiondomain.Subscription, error) {
	if limit <= 0 {
		limit = 10
	}
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status IN ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		[]subscriptiondomain.Status{
			subscriptiondomain.StatusPending,
			subscriptiondomain.StatusTrialing,
			subscriptiondomain.StatusActive,
		},
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
