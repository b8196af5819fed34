package ledger

import (
	"github.com/cadenzalabs/cadenza/internal/ledger/repository"
	"github.com/cadenzalabs/cadenza/internal/ledger/service"
	"github.com/cadenzalabs/cadenza/internal/ledger/statement"
	"github.com/cadenzalabs/cadenza/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(pdf.NewProvider),
	fx.Provide(statement.New),
)
