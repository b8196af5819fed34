package catalog

import (
	"github.com/cadenzalabs/cadenza/internal/catalog/repository"
	"github.com/cadenzalabs/cadenza/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
