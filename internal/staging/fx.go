package staging

import (
	"github.com/railzwaylabs/orderrecon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("staging",
	fx.Provide(NewLoaderFromConfig),
)

func NewLoaderFromConfig(cfg config.Config, log *zap.Logger) (*Loader, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st := cfg.Staging
	return NewLoader(Sources{
		LazadaOrders:     st.Path(st.LazadaOrders),
		LazadaOrderItems: st.Path(st.LazadaOrderItems),
		ShopeeOrders:     st.Path(st.ShopeeOrders),
		ShopeeOrderItems: st.Path(st.ShopeeOrderItems),
		ShopeePayments:   st.PaymentPaths(),
		Location:         loc,
	}, log), nil
}
