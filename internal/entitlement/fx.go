package entitlement

import (
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/entitlement/domain"
	"github.com/cadenzalabs/cadenza/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(func(svc catalogdomain.Service) domain.CatalogSource { return svc }),
	fx.Provide(service.New),
)
