package sale

import (
	"github.com/heliovolt/solshare/internal/sale/repository"
	"github.com/heliovolt/solshare/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
