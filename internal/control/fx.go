package control

import (
	"github.com/smallbiznis/redevance/internal/control/repository"
	"github.com/smallbiznis/redevance/internal/control/service"
	"go.uber.org/fx"
)

var Module = fx.Module("control.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
