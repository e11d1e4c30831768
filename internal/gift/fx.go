package gift

import (
	"github.com/smallbiznis/giftpool/internal/gift/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("gift.repository",
	fx.Provide(repository.Provide),
)
