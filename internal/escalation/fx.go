package escalation

import (
	"github.com/smallbiznis/redevance/internal/escalation/repository"
	"github.com/smallbiznis/redevance/internal/escalation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("escalation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
