package config

import (
	"github.com/smallbiznis/giftpool/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewSettlementPolicyHolder,
		func(cfg Config) db.Config { return cfg.DB },
	),
)
