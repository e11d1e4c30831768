package migration

import (
	"github.com/smallbiznis/giftpool/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("schema migrations skipped", zap.Bool("migrate_on_start", false))
			return nil
		}
		if err := Apply(conn); err != nil {
			return err
		}
		log.Info("schema migrations applied", zap.String("dialect", conn.Dialector.Name()))
		return nil
	}),
)
