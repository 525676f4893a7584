package service

import (
	"strings"

	"github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"go.uber.org/zap"
)

type orderKey struct {
	platform platform.Platform
	orderID  string
}

// Matcher indexes payment detail items by ItemKey. It is read-only after
// construction.
type Matcher struct {
	items  map[domain.ItemKey]domain.PaymentDetailItem
	orders map[orderKey]domain.OrderPayment
	stats  domain.Stats
}

// NewMatcher indexes the payments in order. A later entry for an existing
// key replaces the earlier one and is counted as a duplicate.
func NewMatcher(log *zap.Logger, payments []domain.OrderPayment) *Matcher {
	log = log.Named("paymentdetail.matcher")
	m := &Matcher{
		items:  make(map[domain.ItemKey]domain.PaymentDetailItem),
		orders: make(map[orderKey]domain.OrderPayment, len(payments)),
	}

	for _, payment := range payments {
		ordKey := orderKey{platform: payment.Platform, orderID: strings.TrimSpace(payment.OrderID)}
		if _, seen := m.orders[ordKey]; seen {
			m.stats.DuplicateOrders++
			log.Warn("duplicate payment record for order, keeping the later one",
				zap.String("platform", payment.Platform.String()),
				zap.String("order_id", ordKey.orderID),
			)
		}
		m.orders[ordKey] = payment

		for _, item := range payment.Items {
			key := domain.NewItemKey(payment.Platform, payment.OrderID, item.ItemID, item.ModelID)
			if _, seen := m.items[key]; seen {
				m.stats.Duplicates++
				log.Warn("duplicate payment detail item, keeping the later one",
					zap.String("platform", key.Platform.String()),
					zap.String("order_id", key.OrderID),
					zap.String("item_id", key.ItemID),
					zap.String("model_id", key.ModelID),
				)
			}
			m.items[key] = item
		}
	}

	m.stats.Orders = len(m.orders)
	m.stats.Items = len(m.items)
	return m
}

func (m *Matcher) Find(p platform.Platform, orderID, itemID, modelID string) (domain.PaymentDetailItem, bool) {
	item, ok := m.items[domain.NewItemKey(p, orderID, itemID, modelID)]
	return item, ok
}

func (m *Matcher) Order(p platform.Platform, orderID string) (domain.OrderPayment, bool) {
	payment, ok := m.orders[orderKey{platform: p, orderID: strings.TrimSpace(orderID)}]
	return payment, ok
}

func (m *Matcher) Stats() domain.Stats {
	return m.stats
}
