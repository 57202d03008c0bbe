package shares

import (
	"github.com/heliovolt/solshare/internal/shares/repository"
	"github.com/heliovolt/solshare/internal/shares/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shares.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
