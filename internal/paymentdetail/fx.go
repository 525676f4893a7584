package paymentdetail

import (
	"github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/paymentdetail/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Factory builds a matcher for one run's payments.
type Factory func(payments []domain.OrderPayment) *service.Matcher

var Module = fx.Module("paymentdetail.service",
	fx.Provide(NewFactory),
)

func NewFactory(log *zap.Logger) Factory {
	return func(payments []domain.OrderPayment) *service.Matcher {
		return service.NewMatcher(log, payments)
	}
}
