package subscription

import (
	"github.com/cadenzalabs/cadenza/internal/subscription/domain"
	"github.com/cadenzalabs/cadenza/internal/subscription/repository"
	"github.com/cadenzalabs/cadenza/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Reader { return svc }),
)
