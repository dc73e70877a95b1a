package migration

import (
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	billingeventdomain "github.com/vocaldesk/vocaldesk/internal/billingevent/domain"
	"github.com/vocaldesk/vocaldesk/internal/config"
	customerdomain "github.com/vocaldesk/vocaldesk/internal/customer/domain"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL migrations target postgres; the sqlite and
			// mysql paths exist for local development and lean on the
			// model definitions instead.
			return conn.AutoMigrate(
				&accountdomain.Account{},
				&customerdomain.Mapping{},
				&subscriptiondomain.Subscription{},
				&billingeventdomain.BillingEvent{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
