package dimension

import (
	"github.com/railzwaylabs/orderrecon/internal/dimension/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dimension.service",
	fx.Provide(service.NewService),
)
