// Package resolver maps a webhook event to the local account it belongs
// to. Strategies run in order of trustworthiness; the first hit wins.
package resolver

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	customerdomain "github.com/vocaldesk/vocaldesk/internal/customer/domain"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	"github.com/vocaldesk/vocaldesk/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Strategy names, reported in results, audit records, and metrics.
const (
	StrategySubscriptionID = "subscription_id"
	StrategyCustomerID     = "customer_id"
	StrategyEmail          = "email"
	StrategyRecentFallback = "recent_fallback"
)

// fallbackLookback bounds how many open subscriptions the heuristic
// strategy inspects.
const fallbackLookback = 10

// Match is a successful resolution.
type Match struct {
	AccountID snowflake.ID
	Strategy  string
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Subscriptions subscriptiondomain.Repository
	Customers     customerdomain.Repository
	Accounts      accountdomain.Repository
}

// Resolver walks the strategy chain against the store.
type Resolver struct {
	db            *gorm.DB
	log           *zap.Logger
	subscriptions subscriptiondomain.Repository
	customers     customerdomain.Repository
	accounts      accountdomain.Repository
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		db:            p.DB,
		log:           p.Log.Named("webhook.resolver"),
		subscriptions: p.Subscriptions,
		customers:     p.Customers,
		accounts:      p.Accounts,
	}
}

// Resolve returns the owning account for the event, or
// accountdomain.ErrNotFound when no strategy matches.
func (r *Resolver) Resolve(ctx context.Context, env *domain.Envelope) (*Match, error) {
	if m, err := r.bySubscriptionID(ctx, env.Data.ID); m != nil || err != nil {
		return m, err
	}
	if m, err := r.byCustomerID(ctx, env.Data.CustomerID); m != nil || err != nil {
		return m, err
	}
	if m, err := r.byEmail(ctx, env.Data.CustomData.Email); m != nil || err != nil {
		return m, err
	}
	if m, err := r.byRecentFallback(ctx, env); m != nil || err != nil {
		return m, err
	}
	return nil, accountdomain.ErrNotFound
}

func (r *Resolver) bySubscriptionID(ctx context.Context, id string) (*Match, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	sub, err := r.subscriptions.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	return &Match{AccountID: sub.AccountID, Strategy: StrategySubscriptionID}, nil
}

func (r *Resolver) byCustomerID(ctx context.Context, customerID string) (*Match, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, nil
	}
	sub, err := r.subscriptions.FindByProviderCustomerID(ctx, r.db, customerID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return &Match{AccountID: sub.AccountID, Strategy: StrategyCustomerID}, nil
	}
	mapping, err := r.customers.FindByProviderCustomerID(ctx, r.db, customerID)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}
	return &Match{AccountID: mapping.AccountID, Strategy: StrategyCustomerID}, nil
}

func (r *Resolver) byEmail(ctx context.Context, email string) (*Match, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	account, err := r.accounts.FindByEmail(ctx, r.db, email)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return &Match{AccountID: account.ID, Strategy: StrategyEmail}, nil
	}
	mapping, err := r.customers.FindByEmail(ctx, r.db, email)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}
	return &Match{AccountID: mapping.AccountID, Strategy: StrategyEmail}, nil
}

// byRecentFallback is the last resort for events whose identifiers match
// nothing on record: a checkout placeholder created moments before the
// provider's first delivery is the most recent open subscription.
func (r *Resolver) byRecentFallback(ctx context.Context, env *domain.Envelope) (*Match, error) {
	subs, err := r.subscriptions.ListRecentOpen(ctx, r.db, fallbackLookback)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	matched := subs[0]
	r.log.Warn("resolved account through recent-subscription heuristic",
		zap.String("event_id", env.EventID),
		zap.String("event_type", string(env.EventType)),
		zap.String("subscription_id", env.Data.ID),
		zap.String("matched_subscription", matched.ID),
		zap.String("account_id", matched.AccountID.String()),
	)
	return &Match{AccountID: matched.AccountID, Strategy: StrategyRecentFallback}, nil
}
