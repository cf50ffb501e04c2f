package taxpayer

import (
	"github.com/smallbiznis/redevance/internal/taxpayer/repository"
	"github.com/smallbiznis/redevance/internal/taxpayer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxpayer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
