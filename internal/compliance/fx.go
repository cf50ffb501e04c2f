package compliance

import (
	"github.com/smallbiznis/redevance/internal/compliance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliance.service",
	fx.Provide(service.New),
)
