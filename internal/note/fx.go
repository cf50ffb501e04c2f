package note

import (
	"github.com/smallbiznis/redevance/internal/note/repository"
	"github.com/smallbiznis/redevance/internal/note/service"
	"go.uber.org/fx"
)

var Module = fx.Module("note.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
