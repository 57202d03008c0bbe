package accesscontrol

import "go.uber.org/fx"

var Module = fx.Module("accesscontrol.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
	fx.Invoke(SeedGenesisAdmin),
)
