package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	billingeventdomain "github.com/vocaldesk/vocaldesk/internal/billingevent/domain"
	"github.com/vocaldesk/vocaldesk/internal/config"
	customerdomain "github.com/vocaldesk/vocaldesk/internal/customer/domain"
	"github.com/vocaldesk/vocaldesk/internal/observability/logger"
	"github.com/vocaldesk/vocaldesk/internal/observability/metrics"
	"github.com/vocaldesk/vocaldesk/internal/providers/slack"
	"github.com/vocaldesk/vocaldesk/internal/provisioning"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	"github.com/vocaldesk/vocaldesk/internal/webhook/domain"
	"github.com/vocaldesk/vocaldesk/internal/webhook/resolver"
	"github.com/vocaldesk/vocaldesk/internal/webhook/signature"
	"github.com/vocaldesk/vocaldesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	GenID         *snowflake.Node
	Verifier      *signature.Verifier
	Resolver      *resolver.Resolver
	Subscriptions subscriptiondomain.Service
	Customers     customerdomain.Repository
	Events        billingeventdomain.Repository
	Dispatcher    *provisioning.Dispatcher
	Metrics       *metrics.Metrics
	Alerts        slack.Provider
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	verifier      *signature.Verifier
	resolver      *resolver.Resolver
	subscriptions subscriptiondomain.Service
	customers     customerdomain.Repository
	events        billingeventdomain.Repository
	dispatcher    *provisioning.Dispatcher
	metrics       *metrics.Metrics
	alerts        slack.Provider
	alertChannel  string
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		genID:         p.GenID,
		verifier:      p.Verifier,
		resolver:      p.Resolver,
		subscriptions: p.Subscriptions,
		customers:     p.Customers,
		events:        p.Events,
		dispatcher:    p.Dispatcher,
		metrics:       p.Metrics,
		alerts:        p.Alerts,
		alertChannel:  p.Config.SlackAlertChannel,
	}
}

// Process runs one delivery through the pipeline. The returned error maps
// to the HTTP status at the transport layer; a nil error means the event
// was applied and acknowledged.
func (s *Service) Process(ctx context.Context, raw []byte, sig, timestamp string) (*domain.Result, error) {
	log := logger.WithContext(ctx, s.log)

	if err := s.verifier.Verify(raw, sig, timestamp); err != nil {
		if err == domain.ErrSecretNotConfigured {
			s.alert(ctx, "billing webhook secret is not configured; rejecting all deliveries")
		}
		s.metrics.RecordWebhookEvent(ctx, "unknown", "rejected")
		return nil, err
	}

	env, err := s.decode(raw)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, "unknown", "rejected")
		return nil, err
	}

	if env.EventType.Ignored() {
		log.Info("acknowledged no-op event",
			zap.String("event_id", env.EventID),
			zap.String("event_type", string(env.EventType)),
		)
		s.metrics.RecordWebhookEvent(ctx, string(env.EventType), "ignored")
		return nil, domain.ErrEventIgnored
	}
	if !env.EventType.Processed() {
		s.metrics.RecordWebhookEvent(ctx, string(env.EventType), "rejected")
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedEvent, env.EventType)
	}

	// Field validation runs before any lookups so a permanently malformed
	// event is rejected outright instead of bouncing as unresolved, which
	// would invite the provider to redeliver it forever.
	status, err := validateEvent(env)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, string(env.EventType), "rejected")
		return nil, err
	}

	match, err := s.resolver.Resolve(ctx, env)
	if err != nil {
		if err == accountdomain.ErrNotFound {
			log.Warn("no account resolved for event",
				zap.String("event_id", env.EventID),
				zap.String("event_type", string(env.EventType)),
				zap.String("subscription_id", env.Data.ID),
				zap.String("customer_id", env.Data.CustomerID),
			)
			s.metrics.RecordWebhookEvent(ctx, string(env.EventType), "unresolved")
		}
		return nil, err
	}
	s.metrics.RecordResolverMatch(ctx, match.Strategy)

	req := s.buildApplyRequest(env, match.AccountID, status)

	started := time.Now()
	applied, err := s.subscriptions.Apply(ctx, req)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, string(env.EventType), "failed")
		s.alert(ctx, fmt.Sprintf("failed to persist billing event %s (%s): %v", env.EventID, env.EventType, err))
		return nil, err
	}
	s.metrics.RecordReconcileDuration(ctx, string(env.EventType), time.Since(started))
	s.metrics.RecordWebhookEvent(ctx, string(env.EventType), string(applied.Outcome))

	result := &domain.Result{
		EventID:        env.EventID,
		EventType:      env.EventType,
		Outcome:        applied.Outcome,
		SubscriptionID: applied.SubscriptionID,
		AccountID:      applied.AccountID,
		Strategy:       match.Strategy,
	}

	s.recordAudit(ctx, raw, result)
	s.recordCustomerMapping(ctx, env, applied.AccountID)

	if applied.EnteredNegative() {
		s.dispatcher.Enqueue(provisioning.Task{
			AccountID:      applied.AccountID,
			SubscriptionID: applied.SubscriptionID,
			Reason:         string(applied.Status),
		})
	}

	log.Info("processed billing event",
		zap.String("event_id", env.EventID),
		zap.String("event_type", string(env.EventType)),
		zap.String("subscription_id", applied.SubscriptionID),
		zap.String("account_id", applied.AccountID.String()),
		zap.String("outcome", string(applied.Outcome)),
		zap.String("strategy", match.Strategy),
	)

	return result, nil
}

func (s *Service) decode(raw []byte) (*domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(env.EventID) == "" || env.EventType == "" {
		return nil, domain.ErrMissingField
	}
	return &env, nil
}

func validateEvent(env *domain.Envelope) (subscriptiondomain.Status, error) {
	if strings.TrimSpace(env.Data.ID) == "" {
		return "", domain.ErrMissingField
	}
	status, ok := subscriptiondomain.ParseStatus(env.Data.Status)
	if !ok {
		return "", fmt.Errorf("%w: status %q", domain.ErrInvalidPayload, env.Data.Status)
	}
	return status, nil
}

func (s *Service) buildApplyRequest(env *domain.Envelope, accountID snowflake.ID, status subscriptiondomain.Status) subscriptiondomain.ApplyRequest {
	periodStart, periodEnd := derivePeriod(env.Data)

	req := subscriptiondomain.ApplyRequest{
		SubscriptionID:     env.Data.ID,
		AccountID:          accountID,
		Status:             status,
		PriceID:            env.Data.PriceID(),
		Quantity:           env.Data.Quantity(),
		CancelAtPeriodEnd:  env.Data.CancelAtPeriodEnd,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		PausedAt:           env.Data.PausedAt,
		CanceledAt:         env.Data.CanceledAt,
		EndedAt:            env.Data.EndedAt,
		ProviderCustomerID: env.Data.CustomerID,
	}
	if env.Data.TrialDates != nil {
		req.TrialStart = env.Data.TrialDates.StartsAt
		req.TrialEnd = env.Data.TrialDates.EndsAt
	}
	return req
}

// derivePeriod picks period boundaries from the richest available source:
// the explicit billing period, then the trial window, then the top-level
// billing timestamps.
func derivePeriod(data domain.EventData) (start, end *time.Time) {
	if p := data.CurrentBillingPeriod; p != nil {
		start, end = p.StartsAt, p.EndsAt
	}
	if start == nil && data.TrialDates != nil {
		start = data.TrialDates.StartsAt
	}
	if end == nil && data.TrialDates != nil {
		end = data.TrialDates.EndsAt
	}
	if start == nil {
		start = data.StartedAt
	}
	if start == nil {
		start = data.FirstBilledAt
	}
	if end == nil {
		end = data.NextBilledAt
	}
	return start, end
}

// alert posts an operator notification without blocking the delivery.
func (s *Service) alert(ctx context.Context, message string) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.PostMessage(ctx, s.alertChannel, message); err != nil {
		s.log.Warn("failed to post operator alert", zap.Error(err))
	}
}

// recordCustomerMapping keeps the provider-customer lookup table current so
// later deliveries for the same customer resolve directly instead of falling
// back to email matching or the recency heuristic. Best effort; a failed
// write never fails a delivery that has already been applied.
func (s *Service) recordCustomerMapping(ctx context.Context, env *domain.Envelope, accountID snowflake.ID) {
	customerID := strings.TrimSpace(env.Data.CustomerID)
	if customerID == "" {
		return
	}
	now := time.Now().UTC()
	mapping := &customerdomain.Mapping{
		ID:                 s.genID.Generate(),
		AccountID:          accountID,
		ProviderCustomerID: customerID,
		Email:              strings.ToLower(strings.TrimSpace(env.Data.CustomData.Email)),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.customers.Upsert(ctx, s.db, mapping); err != nil {
		s.log.Warn("failed to record customer mapping",
			zap.Error(err),
			zap.String("customer_id", customerID),
			zap.String("account_id", accountID.String()),
		)
	}
}

// recordAudit appends the processed delivery to the audit trail. Failures
// are logged and swallowed; auditing never fails a delivery that has
// already been applied.
func (s *Service) recordAudit(ctx context.Context, raw []byte, result *domain.Result) {
	event := &billingeventdomain.BillingEvent{
		ID:              s.genID.Generate(),
		ProviderEventID: result.EventID,
		EventType:       string(result.EventType),
		AccountID:       result.AccountID,
		SubscriptionID:  result.SubscriptionID,
		Outcome:         string(result.Outcome),
		Strategy:        result.Strategy,
		Payload:         datatypes.JSON(raw),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.events.Insert(ctx, s.db, event); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Redelivery of an already-recorded event.
			return
		}
		s.log.Error("failed to record billing event audit row",
			zap.Error(err),
			zap.String("event_id", result.EventID),
		)
	}
}
