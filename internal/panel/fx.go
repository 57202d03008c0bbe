package panel

import (
	"github.com/heliovolt/solshare/internal/panel/repository"
	"github.com/heliovolt/solshare/internal/panel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("panel.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
