package requirement

import (
	"go.uber.org/fx"
)

var Module = fx.Module("requirement.module",
	fx.Provide(NewService, ProvideValidator),
)

var Routes = fx.Module("requirement.routes",
	fx.Invoke(RegisterRoutes),
)
