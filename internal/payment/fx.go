package payment

import (
	"github.com/smallbiznis/redevance/internal/payment/repository"
	"github.com/smallbiznis/redevance/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
