package allocation

import (
	"github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	"github.com/railzwaylabs/orderrecon/internal/allocation/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Factory builds an allocator over one run's lookups.
type Factory func(ctx domain.Context) *service.Allocator

var Module = fx.Module("allocation.service",
	fx.Provide(NewFactory),
)

func NewFactory(log *zap.Logger) Factory {
	return func(ctx domain.Context) *service.Allocator {
		return service.NewAllocator(ctx, log)
	}
}
