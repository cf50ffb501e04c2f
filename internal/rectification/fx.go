package rectification

import (
	"github.com/smallbiznis/redevance/internal/rectification/repository"
	"github.com/smallbiznis/redevance/internal/rectification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rectification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
