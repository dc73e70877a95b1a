package subscription

import (
	"github.com/vocaldesk/vocaldesk/internal/subscription/repository"
	"github.com/vocaldesk/vocaldesk/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
