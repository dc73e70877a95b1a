// Package server wires the HTTP surface: the billing webhook endpoint,
// health, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vocaldesk/vocaldesk/internal/account"
	"github.com/vocaldesk/vocaldesk/internal/billingevent"
	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/customer"
	"github.com/vocaldesk/vocaldesk/internal/observability"
	obslogger "github.com/vocaldesk/vocaldesk/internal/observability/logger"
	obsmetrics "github.com/vocaldesk/vocaldesk/internal/observability/metrics"
	"github.com/vocaldesk/vocaldesk/internal/providers"
	"github.com/vocaldesk/vocaldesk/internal/provisioning"
	"github.com/vocaldesk/vocaldesk/internal/ratelimit"
	"github.com/vocaldesk/vocaldesk/internal/subscription"
	"github.com/vocaldesk/vocaldesk/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	account.Module,
	customer.Module,
	subscription.Module,
	billingevent.Module,
	providers.Module,
	provisioning.Module,
	ratelimit.Module,
	webhook.Module,
	fx.Invoke(registerWebhookRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
