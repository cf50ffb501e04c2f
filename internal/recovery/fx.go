package recovery

import (
	"github.com/smallbiznis/redevance/internal/recovery/repository"
	"github.com/smallbiznis/redevance/internal/recovery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recovery.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
