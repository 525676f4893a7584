package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	dimensiondomain "github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	paymentservice "github.com/railzwaylabs/orderrecon/internal/paymentdetail/service"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var orderTime = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testIndex(t *testing.T) *dimensiondomain.Index {
	t.Helper()
	idx, err := dimensiondomain.NewIndex(dimensiondomain.Tables{
		Orders: []dimensiondomain.OrderRow{
			{OrdersKey: 1, PlatformOrderID: "S-1", PlatformKey: 2, TotalItemCount: 2},
			{OrdersKey: 2, PlatformOrderID: "S-2", PlatformKey: 2, TotalItemCount: 1},
			{OrdersKey: 3, PlatformOrderID: "S-3", PlatformKey: 2, TotalItemCount: 3, OrderDate: orderTime},
			{OrdersKey: 4, PlatformOrderID: "S-4", PlatformKey: 2, TotalItemCount: 1},
		},
		Customers: []dimensiondomain.CustomerRow{
			{CustomerKey: 10, PlatformCustomerID: "buyer-1", PlatformKey: 2},
		},
		Products: []dimensiondomain.ProductRow{
			{ProductKey: 100, ProductItemID: "111", PlatformKey: 2},
			{ProductKey: 200, ProductItemID: "555", PlatformKey: 2},
		},
		Variants: []dimensiondomain.VariantRow{
			{ProductVariantKey: 1000, PlatformSKUID: "222", ProductKey: 100, PlatformKey: 2},
			{ProductVariantKey: 1001, PlatformSKUID: "223", ProductKey: 100, PlatformKey: 2},
		},
	})
	require.NoError(t, err)
	return idx
}

func newTestAllocator(t *testing.T, payments ...paymentdomain.OrderPayment) *Allocator {
	t.Helper()
	return NewAllocator(domain.Context{
		Dimensions: testIndex(t),
		Payments:   paymentservice.NewMatcher(zap.NewNop(), payments),
	}, zap.NewNop())
}

func allocateOne(t *testing.T, a *Allocator, order domain.RawOrder) ([]domain.LineAllocation, domain.DropTally, domain.Stats) {
	t.Helper()
	drops := domain.DropTally{}
	stats := domain.Stats{BySource: map[domain.Source]int64{}}
	lines := a.Allocate(order, drops, &stats)
	return lines, drops, stats
}

func TestAllocateOrderVoucherFallback(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform:        platform.Shopee,
		OrderID:         "S-1",
		VoucherPlatform: dec("100"),
		VoucherSeller:   dec("50"),
	})

	lines, drops, _ := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-1",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-1", ItemID: "111", ModelID: "222", Quantity: 2, OriginalUnitPrice: dec("400")},
		},
	})

	require.Len(t, lines, 1)
	assert.Zero(t, drops.Total())
	line := lines[0]
	assert.Equal(t, domain.SourceOrderVoucher, line.Source)
	assert.True(t, line.VoucherPlatform.Equal(dec("50")), line.VoucherPlatform.String())
	assert.True(t, line.VoucherSeller.Equal(dec("25")), line.VoucherSeller.String())
	assert.True(t, line.PaidPrice.Equal(dec("325")), line.PaidPrice.String())

	units := line.Expand()
	require.Len(t, units, 2)
	for _, u := range units {
		assert.True(t, u.VoucherPlatform.Equal(dec("50")))
		assert.True(t, u.VoucherSeller.Equal(dec("25")))
	}
}

func TestAllocatePaymentDetailPrecedence(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform: platform.Shopee,
		OrderID:  "S-2",
		Items: []paymentdomain.PaymentDetailItem{
			{
				ItemID:                      "111",
				ModelID:                     "222",
				DiscountFromPlatformVoucher: dec("30"),
				DiscountFromSellerVoucher:   dec("20"),
				DiscountedPrice:             dec("300"),
			},
		},
		VoucherPlatform: dec("999"),
		VoucherSeller:   dec("999"),
	})

	lines, _, _ := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-2",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-2", ItemID: "111", ModelID: "222", Quantity: 1, OriginalUnitPrice: dec("350")},
		},
	})

	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, domain.SourcePaymentDetail, line.Source)
	assert.True(t, line.PaidPrice.Equal(dec("300")))
	assert.True(t, line.VoucherPlatform.Equal(dec("30")))
	assert.True(t, line.VoucherSeller.Equal(dec("20")))
	assert.True(t, line.OriginalUnitPrice.Equal(dec("350")))
	require.NotNil(t, line.VariantKey)
	assert.Equal(t, int64(1000), *line.VariantKey)
}

func TestAllocatePaymentDetailDerivedPaid(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform: platform.Shopee,
		OrderID:  "S-3",
		Items: []paymentdomain.PaymentDetailItem{
			{ItemID: "111", ModelID: "0", DiscountFromPlatformVoucher: dec("10"), DiscountFromSellerVoucher: dec("0")},
		},
	})

	lines, _, stats := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-3",
		CustomerID: "buyer-1",
		Lines: []domain.RawOrderLine{
			{OrderID: "S-3", ItemID: "111", ModelID: "0", Quantity: 3, OriginalUnitPrice: dec("100")},
		},
	})

	require.Len(t, lines, 1)
	line := lines[0]
	assert.True(t, line.VoucherPlatform.Equal(dec("3.33")))
	assert.True(t, line.PaidPrice.Equal(dec("96.67")))
	assert.True(t, line.OriginalUnitPrice.Sub(line.VoucherPlatform).Sub(line.VoucherSeller).Equal(line.PaidPrice))
	assert.Equal(t, orderTime, line.OrderDate, "falls back to dim_order order_date")

	require.NotNil(t, line.VariantKey)
	assert.Equal(t, int64(1000), *line.VariantKey, "model 0 resolves to DEFAULT_100")
	assert.Equal(t, int64(1), stats.VariantDefaulted)
}

func TestAllocatePaymentDetailSplitKeepsInvariant(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform: platform.Shopee,
		OrderID:  "S-3",
		Items: []paymentdomain.PaymentDetailItem{
			{
				ItemID:                      "111",
				ModelID:                     "222",
				DiscountFromPlatformVoucher: dec("10"),
				DiscountFromSellerVoucher:   dec("10"),
				DiscountedPrice:             dec("1030"),
			},
		},
	})

	lines, _, _ := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-3",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-3", ItemID: "111", ModelID: "222", Quantity: 3, OriginalUnitPrice: dec("350")},
		},
	})

	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, domain.SourcePaymentDetail, line.Source)
	assert.True(t, line.VoucherPlatform.Equal(dec("3.33")), line.VoucherPlatform.String())
	assert.True(t, line.VoucherSeller.Equal(dec("3.33")), line.VoucherSeller.String())
	assert.True(t, line.PaidPrice.Equal(dec("343.34")), line.PaidPrice.String())
	assert.True(t, line.OriginalUnitPrice.Sub(line.VoucherPlatform).Sub(line.VoucherSeller).Equal(line.PaidPrice))
}

func TestAllocatePaymentDetailReportedPriceStands(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform: platform.Shopee,
		OrderID:  "S-2",
		Items: []paymentdomain.PaymentDetailItem{
			{ItemID: "111", ModelID: "222", DiscountFromPlatformVoucher: dec("30"), DiscountedPrice: dec("250")},
		},
	})

	lines, _, _ := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-2",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-2", ItemID: "111", ModelID: "222", Quantity: 1, OriginalUnitPrice: dec("350")},
		},
	})

	require.Len(t, lines, 1)
	assert.True(t, lines[0].PaidPrice.Equal(dec("250")), "inconsistent export is kept for the validator")
}

func TestAllocateInitializesStats(t *testing.T) {
	a := newTestAllocator(t)
	var stats domain.Stats

	lines := a.Allocate(domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-1",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-1", ItemID: "111", ModelID: "222", Quantity: 1, OriginalUnitPrice: dec("10")},
		},
	}, domain.DropTally{}, &stats)

	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), stats.BySource[domain.SourceListPrice])
}

func TestAllocateListPriceAndShipping(t *testing.T) {
	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform:          platform.Shopee,
		OrderID:           "S-1",
		BuyerPaidShipping: dec("9"),
	})

	lines, _, stats := allocateOne(t, a, domain.RawOrder{
		Platform:   platform.Shopee,
		OrderID:    "S-1",
		CustomerID: "buyer-1",
		CreatedAt:  orderTime,
		Lines: []domain.RawOrderLine{
			{OrderID: "S-1", ItemID: "111", ModelID: "223", Quantity: 1, OriginalUnitPrice: dec("80"), PlatformDiscountedPrice: dec("70")},
			{OrderID: "S-1", ItemID: "555", ModelID: "0", Quantity: 2, OriginalUnitPrice: dec("20"), LineShipping: dec("5")},
		},
	})

	require.Len(t, lines, 2)
	first, second := lines[0], lines[1]

	assert.Equal(t, domain.SourceListPrice, first.Source)
	assert.True(t, first.PaidPrice.Equal(dec("80")))
	assert.True(t, first.VoucherPlatform.IsZero())
	assert.True(t, first.Shipping.Equal(dec("3")), "order shipping 9 over 3 units")
	require.NotNil(t, first.VariantKey)
	assert.Equal(t, int64(1001), *first.VariantKey)

	assert.True(t, second.Shipping.Equal(dec("2.5")), "line shipping 5 over 2 units")
	assert.Nil(t, second.VariantKey, "product 200 has no variants")

	assert.Equal(t, int64(1), stats.UnattributedDiscount)
	assert.Equal(t, int64(1), stats.VariantMissing)
	assert.Equal(t, int64(2), stats.BySource[domain.SourceListPrice])
}

func TestAllocateDrops(t *testing.T) {
	a := newTestAllocator(t)

	tests := []struct {
		name   string
		order  domain.RawOrder
		reason domain.DropReason
		count  int64
	}{
		{
			name: "unknown order",
			order: domain.RawOrder{Platform: platform.Shopee, OrderID: "S-404", CustomerID: "buyer-1", CreatedAt: orderTime,
				Lines: []domain.RawOrderLine{{ItemID: "111", Quantity: 1}, {ItemID: "555", Quantity: 1}}},
			reason: domain.DropUnknownOrder,
			count:  2,
		},
		{
			name: "same id on another platform",
			order: domain.RawOrder{Platform: platform.Lazada, OrderID: "S-1", CustomerID: "buyer-1", CreatedAt: orderTime,
				Lines: []domain.RawOrderLine{{ItemID: "111", Quantity: 1}}},
			reason: domain.DropUnknownOrder,
			count:  1,
		},
		{
			name: "unknown customer",
			order: domain.RawOrder{Platform: platform.Shopee, OrderID: "S-1", CustomerID: "stranger", CreatedAt: orderTime,
				Lines: []domain.RawOrderLine{{ItemID: "111", Quantity: 1}}},
			reason: domain.DropUnknownCustomer,
			count:  1,
		},
		{
			name: "unknown product",
			order: domain.RawOrder{Platform: platform.Shopee, OrderID: "S-1", CustomerID: "buyer-1", CreatedAt: orderTime,
				Lines: []domain.RawOrderLine{{ItemID: "999", Quantity: 4}}},
			reason: domain.DropUnknownProduct,
			count:  1,
		},
		{
			name: "zero quantity",
			order: domain.RawOrder{Platform: platform.Shopee, OrderID: "S-1", CustomerID: "buyer-1", CreatedAt: orderTime,
				Lines: []domain.RawOrderLine{{ItemID: "111", Quantity: 0}}},
			reason: domain.DropInvalidQuantity,
			count:  1,
		},
		{
			name: "no order date anywhere",
			order: domain.RawOrder{Platform: platform.Shopee, OrderID: "S-4", CustomerID: "buyer-1",
				Lines: []domain.RawOrderLine{{ItemID: "111", Quantity: 1}}},
			reason: domain.DropMissingOrderDate,
			count:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, drops, _ := allocateOne(t, a, tt.order)
			assert.Empty(t, lines)
			assert.Equal(t, tt.count, drops[tt.reason])
			assert.Equal(t, tt.count, drops.Total())
		})
	}
}

func TestAllocateAllDeterministicAcrossWorkers(t *testing.T) {
	var orders []domain.RawOrder
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("S-%d", i%5)
		orders = append(orders, domain.RawOrder{
			Platform:   platform.Shopee,
			OrderID:    id,
			CustomerID: "buyer-1",
			CreatedAt:  orderTime.Add(time.Duration(i) * time.Hour),
			Lines: []domain.RawOrderLine{
				{OrderID: id, ItemID: "111", ModelID: "222", Quantity: int64(i%3 + 1), OriginalUnitPrice: dec("10.50")},
			},
		})
	}

	a := newTestAllocator(t, paymentdomain.OrderPayment{
		Platform: platform.Shopee, OrderID: "S-1", VoucherPlatform: dec("1"),
	})

	sequential, err := a.AllocateAll(context.Background(), orders, 1)
	require.NoError(t, err)
	parallel, err := a.AllocateAll(context.Background(), orders, 6)
	require.NoError(t, err)

	assert.Equal(t, sequential.Lines, parallel.Lines)
	assert.Equal(t, sequential.Drops, parallel.Drops)
	assert.Equal(t, sequential.Stats, parallel.Stats)
	assert.Equal(t, int64(8), sequential.Drops[domain.DropUnknownOrder], "S-0 is not in dim_order")
}

func TestAllocateAllCanceled(t *testing.T) {
	a := newTestAllocator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AllocateAll(ctx, []domain.RawOrder{{OrderID: "S-1"}, {OrderID: "S-2"}}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
