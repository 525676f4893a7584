package runlog

import (
	"github.com/railzwaylabs/orderrecon/internal/runlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("runlog.service",
	fx.Provide(service.NewRecorder),
)
