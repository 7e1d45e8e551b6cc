package refdata

import (
	"go.uber.org/fx"
)

var Module = fx.Module("refdata.module",
	fx.Provide(NewService, ProvideResolver),
)

var Routes = fx.Module("refdata.routes",
	fx.Invoke(RegisterRoutes),
)
