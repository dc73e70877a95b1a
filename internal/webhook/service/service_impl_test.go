package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	accountrepository "github.com/vocaldesk/vocaldesk/internal/account/repository"
	billingeventdomain "github.com/vocaldesk/vocaldesk/internal/billingevent/domain"
	billingeventrepository "github.com/vocaldesk/vocaldesk/internal/billingevent/repository"
	"github.com/vocaldesk/vocaldesk/internal/clock"
	"github.com/vocaldesk/vocaldesk/internal/config"
	customerdomain "github.com/vocaldesk/vocaldesk/internal/customer/domain"
	customerrepository "github.com/vocaldesk/vocaldesk/internal/customer/repository"
	"github.com/vocaldesk/vocaldesk/internal/observability/metrics"
	"github.com/vocaldesk/vocaldesk/internal/providers/slack"
	"github.com/vocaldesk/vocaldesk/internal/provisioning"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	subscriptionrepository "github.com/vocaldesk/vocaldesk/internal/subscription/repository"
	subscriptionservice "github.com/vocaldesk/vocaldesk/internal/subscription/service"
	"github.com/vocaldesk/vocaldesk/internal/webhook/domain"
	"github.com/vocaldesk/vocaldesk/internal/webhook/resolver"
	"github.com/vocaldesk/vocaldesk/internal/webhook/signature"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testSecret = "whsec_pipeline"

type fakeVoiceProvider struct {
	mu       sync.Mutex
	released []snowflake.ID
}

func (p *fakeVoiceProvider) ReleasePhoneNumber(ctx context.Context, accountID snowflake.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, accountID)
	return nil
}

func (p *fakeVoiceProvider) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.released)
}

type pipelineFixture struct {
	db         *gorm.DB
	service    domain.Service
	clock      *clock.FakeClock
	voice      *fakeVoiceProvider
	dispatcher *provisioning.Dispatcher
	genID      *snowflake.Node
}

func newPipeline(t *testing.T) *pipelineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&customerdomain.Mapping{},
		&subscriptiondomain.Subscription{},
		&billingeventdomain.BillingEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	cfg := config.Config{
		WebhookSecret:  testSecret,
		WebhookMaxSkew: 300 * time.Second,
	}

	voice := &fakeVoiceProvider{}
	dispatcher := provisioning.NewDispatcher(log, voice, m)
	dispatcher.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Stop(ctx)
	})

	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.Params{
		DB:    db,
		Log:   log,
		Repo:  subscriptionrepository.Provide(),
		Tiers: config.DefaultTierTable(),
	})

	res := resolver.NewResolver(resolver.Params{
		DB:            db,
		Log:           log,
		Subscriptions: subscriptionrepository.Provide(),
		Customers:     customerrepository.Provide(),
		Accounts:      accountrepository.Provide(),
	})

	svc := NewService(Params{
		DB:            db,
		Log:           log,
		Config:        cfg,
		GenID:         node,
		Verifier:      signature.NewVerifier(cfg, clk),
		Resolver:      res,
		Subscriptions: subscriptionSvc,
		Customers:     customerrepository.Provide(),
		Events:        billingeventrepository.Provide(),
		Dispatcher:    dispatcher,
		Metrics:       m,
		Alerts:        &slack.NoOpProvider{},
	})

	return &pipelineFixture{
		db:         db,
		service:    svc,
		clock:      clk,
		voice:      voice,
		dispatcher: dispatcher,
		genID:      node,
	}
}

func (f *pipelineFixture) addAccount(t *testing.T, email string) snowflake.ID {
	t.Helper()
	account := &accountdomain.Account{
		ID:        f.genID.Generate(),
		Name:      "Test Account",
		Email:     email,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, accountrepository.Provide().Insert(context.Background(), f.db, account))
	return account.ID
}

func (f *pipelineFixture) sign(body []byte) (sig, ts string) {
	unix := f.clock.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d:", unix)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), fmt.Sprint(unix)
}

func eventBody(t *testing.T, eventType, subscriptionID, status, customerID, email, priceID string) []byte {
	t.Helper()
	env := map[string]any{
		"event_id":    "evt_" + subscriptionID + "_" + status,
		"event_type":  eventType,
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": map[string]any{
			"id":          subscriptionID,
			"status":      status,
			"customer_id": customerID,
			"items": []map[string]any{
				{"price": map[string]any{"id": priceID}, "quantity": 1},
			},
			"custom_data": map[string]any{"email": email},
		},
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestProcess_CreatesSubscriptionAndAuditRow(t *testing.T) {
	f := newPipeline(t)
	accountID := f.addAccount(t, "owner@example.com")

	body := eventBody(t, "subscription.created", "sub_123", "active", "ctm_9", "owner@example.com", "price_pro_monthly")
	sig, ts := f.sign(body)

	result, err := f.service.Process(context.Background(), body, sig, ts)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.OutcomeCreated, result.Outcome)
	assert.Equal(t, accountID, result.AccountID)
	assert.Equal(t, resolver.StrategyEmail, result.Strategy)

	var auditCount int64
	require.NoError(t, f.db.Table("billing_events").Count(&auditCount).Error)
	assert.EqualValues(t, 1, auditCount)
}

func TestProcess_RejectsBadSignature(t *testing.T) {
	f := newPipeline(t)
	f.addAccount(t, "owner@example.com")

	body := eventBody(t, "subscription.created", "sub_123", "active", "ctm_9", "owner@example.com", "price_pro_monthly")
	_, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, "0000", ts)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestProcess_IgnoredEventType(t *testing.T) {
	f := newPipeline(t)

	body := eventBody(t, "transaction.completed", "sub_123", "active", "", "", "")
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestProcess_UnsupportedEventType(t *testing.T) {
	f := newPipeline(t)

	body := eventBody(t, "invoice.finalized", "sub_123", "active", "", "", "")
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, domain.ErrUnsupportedEvent)
}

func TestProcess_UnresolvedAccount(t *testing.T) {
	f := newPipeline(t)

	body := eventBody(t, "subscription.created", "sub_123", "active", "ctm_unknown", "nobody@example.com", "price_pro_monthly")
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestProcess_InvalidStatusRejectedBeforeResolution(t *testing.T) {
	f := newPipeline(t)

	// Nothing seeded: resolution would fail, but a permanently malformed
	// event must come back as a validation error, not account_not_found,
	// or the provider redelivers it forever.
	body := eventBody(t, "subscription.updated", "sub_unknown", "not-a-real-status", "ctm_unknown", "", "")
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.NotErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestProcess_MissingSubscriptionIDRejectedBeforeResolution(t *testing.T) {
	f := newPipeline(t)

	body := eventBody(t, "subscription.updated", "", "active", "ctm_unknown", "", "")
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, domain.ErrMissingField)
	assert.NotErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestProcess_RecordsCustomerMapping(t *testing.T) {
	f := newPipeline(t)
	accountID := f.addAccount(t, "owner@example.com")
	ctx := context.Background()

	// The first delivery resolves through the billing email and learns the
	// provider customer id.
	body := eventBody(t, "subscription.created", "sub_123", "active", "ctm_9", "owner@example.com", "price_pro_monthly")
	sig, ts := f.sign(body)
	result, err := f.service.Process(ctx, body, sig, ts)
	require.NoError(t, err)
	require.Equal(t, resolver.StrategyEmail, result.Strategy)

	var mapping customerdomain.Mapping
	require.NoError(t, f.db.Where("provider_customer_id = ?", "ctm_9").First(&mapping).Error)
	assert.Equal(t, accountID, mapping.AccountID)
	assert.Equal(t, "owner@example.com", mapping.Email)

	// A later delivery without an email must not blank the stored one.
	body = eventBody(t, "subscription.updated", "sub_123", "active", "ctm_9", "", "price_pro_monthly")
	sig, ts = f.sign(body)
	_, err = f.service.Process(ctx, body, sig, ts)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&customerdomain.Mapping{}).Where("provider_customer_id = ?", "ctm_9").Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, f.db.Where("provider_customer_id = ?", "ctm_9").First(&mapping).Error)
	assert.Equal(t, "owner@example.com", mapping.Email)
}

func TestProcess_MalformedBody(t *testing.T) {
	f := newPipeline(t)

	body := []byte(`{"event_id": "evt_1", "event_type":`)
	sig, ts := f.sign(body)

	_, err := f.service.Process(context.Background(), body, sig, ts)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestProcess_CancellationTriggersReleaseOnce(t *testing.T) {
	f := newPipeline(t)
	f.addAccount(t, "owner@example.com")
	ctx := context.Background()

	// Activate first so the cancellation is a transition.
	body := eventBody(t, "subscription.created", "sub_123", "active", "ctm_9", "owner@example.com", "price_pro_monthly")
	sig, ts := f.sign(body)
	_, err := f.service.Process(ctx, body, sig, ts)
	require.NoError(t, err)

	cancelBody := eventBody(t, "subscription.canceled", "sub_123", "canceled", "ctm_9", "owner@example.com", "price_pro_monthly")
	sig, ts = f.sign(cancelBody)
	result, err := f.service.Process(ctx, cancelBody, sig, ts)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.OutcomeUpdated, result.Outcome)

	waitFor(t, func() bool { return f.voice.releaseCount() == 1 })

	// Redelivery of the same cancellation is not a transition and must not
	// release again.
	sig, ts = f.sign(cancelBody)
	_, err = f.service.Process(ctx, cancelBody, sig, ts)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.voice.releaseCount())
}
