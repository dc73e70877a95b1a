package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/ratelimit"
	webhookdomain "github.com/vocaldesk/vocaldesk/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerTimestamp = "X-Webhook-Timestamp"
)

type webhookRoutesParams struct {
	fx.In

	Engine  *gin.Engine
	Config  config.Config
	Log     *zap.Logger
	Service webhookdomain.Service
	Limiter *ratelimit.DeliveryLimiter `optional:"true"`
}

func registerWebhookRoutes(p webhookRoutesParams) {
	h := &webhookHandler{
		log:       p.Log.Named("webhook.handler"),
		service:   p.Service,
		bodyLimit: p.Config.WebhookBodyLimit,
		limiter:   p.Limiter,
	}
	p.Engine.POST("/webhooks/billing", h.handleBillingWebhook)
}

type webhookHandler struct {
	log       *zap.Logger
	service   webhookdomain.Service
	bodyLimit int64
	limiter   *ratelimit.DeliveryLimiter
}

func (h *webhookHandler) handleBillingWebhook(c *gin.Context) {
	allowed, retryAfter, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.log.Warn("rate limiter unavailable, allowing delivery", zap.Error(err))
	}
	if !allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
			"type":    "rate_limited",
			"message": "too many deliveries",
		}})
		return
	}

	if !isJSONContentType(c.ContentType()) {
		AbortWithError(c, webhookdomain.ErrInvalidPayload)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.bodyLimit)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, webhookdomain.ErrInvalidPayload)
		return
	}

	result, err := h.service.Process(
		c.Request.Context(),
		raw,
		c.GetHeader(headerSignature),
		c.GetHeader(headerTimestamp),
	)
	if err != nil {
		if errors.Is(err, webhookdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"event_id":        result.EventID,
		"outcome":         string(result.Outcome),
		"subscription_id": result.SubscriptionID,
	})
}

func isJSONContentType(contentType string) bool {
	return strings.EqualFold(strings.TrimSpace(contentType), "application/json")
}
