package notification

import (
	"github.com/smallbiznis/giftpool/internal/notification/service"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		fx.Annotate(service.New, fx.As(new(settlementdomain.CompletionTrigger))),
	),
)
