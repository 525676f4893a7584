package harmonize

import "go.uber.org/fx"

var Module = fx.Module("harmonize.service",
	fx.Provide(NewService),
)
