package declaration

import (
	"github.com/smallbiznis/redevance/internal/declaration/repository"
	"github.com/smallbiznis/redevance/internal/declaration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("declaration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
