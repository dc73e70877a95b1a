package db

import (
	"context"
	"time"

	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/observability/logger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open builds the gorm connection from config and registers pool settings
// plus a lifecycle hook that closes the handle on shutdown.
func Open(lc fx.Lifecycle, cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	maxIdle := cfg.DBMaxIdleConn
	if maxIdle == 0 {
		maxIdle = 5
	}
	maxOpen := cfg.DBMaxOpenConn
	if maxOpen == 0 {
		maxOpen = 25
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sqlDB.Close()
		},
	})

	return conn, nil
}
