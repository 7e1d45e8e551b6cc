package ledger

import (
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.module",
	fx.Provide(NewService),
)

var Routes = fx.Module("ledger.routes",
	fx.Invoke(RegisterRoutes),
)

var Tasks = fx.Module("ledger.tasks",
	fx.Invoke(RegisterTasks),
)
