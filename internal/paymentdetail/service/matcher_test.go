package service

import (
	"testing"

	"github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMatcherFind(t *testing.T) {
	payments := []domain.OrderPayment{
		{
			Platform: platform.Shopee,
			OrderID:  "240301ABC",
			Items: []domain.PaymentDetailItem{
				{ItemID: "111", ModelID: "222", DiscountedPrice: decimal.NewFromInt(300)},
				{ItemID: "333", ModelID: "", DiscountedPrice: decimal.NewFromInt(50)},
			},
			VoucherPlatform: decimal.NewFromInt(10),
		},
	}

	m := NewMatcher(zap.NewNop(), payments)

	item, ok := m.Find(platform.Shopee, "240301ABC", "111", "222")
	require.True(t, ok)
	assert.True(t, item.DiscountedPrice.Equal(decimal.NewFromInt(300)))

	_, ok = m.Find(platform.Shopee, "240301ABC", "333", "0")
	assert.True(t, ok, "empty and zero model ids are the same key")

	_, ok = m.Find(platform.Lazada, "240301ABC", "111", "222")
	assert.False(t, ok)

	_, ok = m.Find(platform.Shopee, "240301ABC", "111", "999")
	assert.False(t, ok)

	order, ok := m.Order(platform.Shopee, "240301ABC")
	require.True(t, ok)
	assert.True(t, order.HasOrderVouchers())

	assert.Equal(t, domain.Stats{Orders: 1, Items: 2}, m.Stats())
}

func TestMatcherLastWriteWins(t *testing.T) {
	payments := []domain.OrderPayment{
		{
			Platform: platform.Shopee,
			OrderID:  "A",
			Items: []domain.PaymentDetailItem{
				{ItemID: "1", ModelID: "0", DiscountedPrice: decimal.NewFromInt(10)},
				{ItemID: "1", ModelID: "0", DiscountedPrice: decimal.NewFromInt(20)},
			},
		},
		{
			Platform: platform.Shopee,
			OrderID:  "A",
			Items: []domain.PaymentDetailItem{
				{ItemID: "1", ModelID: "", DiscountedPrice: decimal.NewFromInt(30)},
			},
		},
	}

	m := NewMatcher(zap.NewNop(), payments)

	item, ok := m.Find(platform.Shopee, "A", "1", "0")
	require.True(t, ok)
	assert.True(t, item.DiscountedPrice.Equal(decimal.NewFromInt(30)))

	stats := m.Stats()
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 1, stats.DuplicateOrders)
	assert.Equal(t, 1, stats.Items)
}
