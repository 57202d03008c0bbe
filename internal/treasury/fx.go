package treasury

import (
	"github.com/heliovolt/solshare/internal/treasury/repository"
	"github.com/heliovolt/solshare/internal/treasury/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treasury.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
