package factorder

import (
	"github.com/railzwaylabs/orderrecon/internal/factorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("factorder.service",
	fx.Provide(service.NewWriter),
)
