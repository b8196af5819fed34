package identity

import (
	"github.com/cadenzalabs/cadenza/internal/identity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(repository.Provide),
	fx.Invoke(Bootstrap),
)
