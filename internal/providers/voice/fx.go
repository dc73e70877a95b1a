package voice

import (
	"net/http"

	"github.com/vocaldesk/vocaldesk/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.voice",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.VoiceAPIBaseURL == "" {
		return &NoOpProvider{}
	}
	return NewHTTP(Config{
		BaseURL: cfg.VoiceAPIBaseURL,
		APIKey:  cfg.VoiceAPIKey,
	}, &http.Client{Timeout: cfg.VoiceAPITimeout})
}
