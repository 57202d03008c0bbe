package dividend

import (
	"github.com/heliovolt/solshare/internal/dividend/repository"
	"github.com/heliovolt/solshare/internal/dividend/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dividend.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
