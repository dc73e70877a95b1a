package webhook

import (
	"github.com/vocaldesk/vocaldesk/internal/webhook/resolver"
	"github.com/vocaldesk/vocaldesk/internal/webhook/service"
	"github.com/vocaldesk/vocaldesk/internal/webhook/signature"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(signature.NewVerifier),
	fx.Provide(resolver.NewResolver),
	fx.Provide(service.NewService),
)
