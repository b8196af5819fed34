package transaction

import (
	"github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"github.com/cadenzalabs/cadenza/internal/transaction/repository"
	"github.com/cadenzalabs/cadenza/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Reader { return svc }),
)
