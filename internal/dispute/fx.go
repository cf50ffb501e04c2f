package dispute

import (
	"github.com/smallbiznis/redevance/internal/dispute/repository"
	"github.com/smallbiznis/redevance/internal/dispute/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispute.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
