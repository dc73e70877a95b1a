package slack

import (
	"net/http"
	"time"

	"github.com/vocaldesk/vocaldesk/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.SlackWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.SlackWebhookURL, &http.Client{Timeout: 5 * time.Second})
}
