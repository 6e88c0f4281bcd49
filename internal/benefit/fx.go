package benefit

import (
	"github.com/smallbiznis/perkhub/internal/benefit/repository"
	"github.com/smallbiznis/perkhub/internal/benefit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("benefit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
