package validation

import (
	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/railzwaylabs/orderrecon/internal/validation/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewValidator(cfg config.Config, log *zap.Logger) *service.Validator {
	return service.NewValidator(log, cfg.Reconcile.ToleranceDecimal(), cfg.Reconcile.MaxFindings)
}

var Module = fx.Module("validation.service",
	fx.Provide(NewValidator),
)
