package person

import (
	"go.uber.org/fx"
)

var Module = fx.Module("person.module",
	fx.Provide(NewService),
)

var Routes = fx.Module("person.routes",
	fx.Invoke(RegisterRoutes),
)
