package providers

import (
	"github.com/vocaldesk/vocaldesk/internal/providers/slack"
	"github.com/vocaldesk/vocaldesk/internal/providers/voice"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	slack.Module,
	voice.Module,
)
