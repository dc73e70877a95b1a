package billingevent

import (
	"github.com/vocaldesk/vocaldesk/internal/billingevent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("billingevent",
	fx.Provide(repository.Provide),
)
