package redeem

import (
	"github.com/smallbiznis/perkhub/internal/redeem/service"
	"go.uber.org/fx"
)

var Module = fx.Module("redeem.service",
	fx.Provide(service.New),
)
