package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	"github.com/vocaldesk/vocaldesk/internal/config"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	webhookdomain "github.com/vocaldesk/vocaldesk/internal/webhook/domain"
	"go.uber.org/zap"
)

type stubWebhookService struct {
	result *webhookdomain.Result
	err    error

	gotSignature string
	gotTimestamp string
	gotBody      []byte
}

func (s *stubWebhookService) Process(ctx context.Context, raw []byte, signature, timestamp string) (*webhookdomain.Result, error) {
	s.gotBody = raw
	s.gotSignature = signature
	s.gotTimestamp = timestamp
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRouter(svc webhookdomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	registerWebhookRoutes(webhookRoutesParams{
		Engine:  r,
		Config:  config.Config{WebhookBodyLimit: 256 * 1024},
		Log:     zap.NewNop(),
		Service: svc,
	})
	return r
}

func postWebhook(r *gin.Engine, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(headerSignature, "sig")
	req.Header.Set(headerTimestamp, "1748779200")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleBillingWebhook_Success(t *testing.T) {
	svc := &stubWebhookService{result: &webhookdomain.Result{
		EventID:        "evt_1",
		EventType:      webhookdomain.EventSubscriptionCreated,
		Outcome:        subscriptiondomain.OutcomeCreated,
		SubscriptionID: "sub_123",
	}}
	r := newTestRouter(svc)

	body := []byte(`{"event_id":"evt_1"}`)
	w := postWebhook(r, body, "application/json")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, svc.gotBody)
	assert.Equal(t, "sig", svc.gotSignature)
	assert.Equal(t, "1748779200", svc.gotTimestamp)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "created", resp["outcome"])
	assert.Equal(t, "sub_123", resp["subscription_id"])
}

func TestHandleBillingWebhook_IgnoredEventAcknowledged(t *testing.T) {
	svc := &stubWebhookService{err: webhookdomain.ErrEventIgnored}
	r := newTestRouter(svc)

	w := postWebhook(r, []byte(`{"event_type":"transaction.completed"}`), "application/json")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
}

func TestHandleBillingWebhook_RejectsNonJSONContentType(t *testing.T) {
	svc := &stubWebhookService{}
	r := newTestRouter(svc)

	w := postWebhook(r, []byte(`not json`), "text/plain")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.gotBody)
}

func TestHandleBillingWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid signature", err: webhookdomain.ErrInvalidSignature, wantStatus: http.StatusBadRequest, wantCode: "invalid_signature"},
		{name: "stale timestamp", err: webhookdomain.ErrStaleTimestamp, wantStatus: http.StatusBadRequest, wantCode: "stale_timestamp"},
		{name: "unsupported event", err: webhookdomain.ErrUnsupportedEvent, wantStatus: http.StatusBadRequest, wantCode: "unsupported_event_type"},
		{name: "missing field", err: webhookdomain.ErrMissingField, wantStatus: http.StatusBadRequest, wantCode: "missing_required_field"},
		{name: "account not found", err: accountdomain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "account_not_found"},
		{name: "secret not configured", err: webhookdomain.ErrSecretNotConfigured, wantStatus: http.StatusInternalServerError, wantCode: "webhook_secret_not_configured"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubWebhookService{err: tc.err})

			w := postWebhook(r, []byte(`{}`), "application/json")

			assert.Equal(t, tc.wantStatus, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}
