package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

type Params struct {
	fx.In

	Cfg        Config
	Log        *zap.Logger
	GormLogger gormlogger.Interface `optional:"true"`
}

var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the configured database, attaches tracing and pool metrics, and
// closes the pool on shutdown.
func New(lc fx.Lifecycle, p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if p.GormLogger != nil {
		gormCfg.Logger = p.GormLogger
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Cfg.Name))); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register gorm prometheus: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Cfg.MaxIdleConn)
	}
	if p.Cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Cfg.MaxOpenConn)
	}
	if p.Cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.Cfg.ConnMaxLifetime)
	}
	if p.Cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(p.Cfg.ConnMaxIdleTime)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				return sqlDB.PingContext(pingCtx)
			},
			OnStop: func(ctx context.Context) error {
				p.Log.Info("closing database pool")
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
