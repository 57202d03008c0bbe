package provisioning

import "go.uber.org/fx"

var Module = fx.Module("provisioning.service",
	fx.Provide(New),
)
