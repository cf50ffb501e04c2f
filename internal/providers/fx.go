package providers

import (
	"github.com/smallbiznis/redevance/internal/providers/email"
	"github.com/smallbiznis/redevance/internal/providers/pdf"
	"github.com/smallbiznis/redevance/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
