package staging

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazadaCustomerID(t *testing.T) {
	tests := []struct {
		name      string
		firstName string
		phone     string
		want      string
	}{
		{"full", "Antonio", "639123456789", "LZAO6389"},
		{"masked", "A**********a", "63*********91", "LZAA6391"},
		{"single letter after masking", "A*", "63", "LZAX6363"},
		{"short name", "A", "", "LZXX0000"},
		{"no phone digits", "Maria", "n/a", "LZMA0000"},
		{"three digits", "Jo", "+1 23", "LZJO1212"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LazadaCustomerID(tt.firstName, tt.phone))
		})
	}
}

func TestBuildLazadaMergesItemRows(t *testing.T) {
	orders, err := Decode[lazadaOrder]([]byte(`[{
		"order_id": 5001,
		"created_at": "2022-10-05 21:02:52 +0800",
		"customer_first_name": "Antonio",
		"address_shipping": {"phone": "639123456789"}
	}]`))
	require.NoError(t, err)

	items, err := Decode[lazadaOrderItems]([]byte(`[
		{"order_id": 5001, "order_items": [
			{"item_id": 77, "sku_id": 700, "item_price": "250.00", "paid_price": "230.00", "voucher_platform": "15", "voucher_seller": "5", "shipping_amount": "10"},
			{"item_id": 77, "sku_id": 700, "item_price": "250.00", "paid_price": "230.00", "voucher_platform": "15", "voucher_seller": "5", "shipping_amount": "10"},
			{"product_id": 88, "sku_id": 800, "quantity": 2, "item_price": "100", "paid_price": "100"}
		]},
		{"order_id": 9999, "order_items": [{"item_id": 1}]}
	]`))
	require.NoError(t, err)

	res := buildLazada(orders.Records, items.Records)
	assert.Equal(t, 1, res.orphanItems)
	require.Len(t, res.orders, 1)

	order := res.orders[0]
	assert.Equal(t, "5001", order.OrderID)
	assert.Equal(t, "LZAO6389", order.CustomerID)
	assert.Equal(t, 2022, order.CreatedAt.Year())
	assert.Equal(t, 5, order.CreatedAt.Day())
	require.Len(t, order.Lines, 2)

	merged := order.Lines[0]
	assert.Equal(t, "77", merged.ItemID)
	assert.Equal(t, "700", merged.ModelID)
	assert.Equal(t, int64(2), merged.Quantity)
	assert.True(t, merged.OriginalUnitPrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, merged.LineShipping.Equal(decimal.NewFromInt(20)))

	assert.Equal(t, "88", order.Lines[1].ItemID)
	assert.True(t, order.Lines[1].OriginalUnitPrice.Equal(decimal.NewFromInt(50)))

	require.Len(t, res.payments, 1)
	detail := res.payments[0].Items[0]
	assert.True(t, detail.DiscountFromPlatformVoucher.Equal(decimal.NewFromInt(30)))
	assert.True(t, detail.DiscountFromSellerVoucher.Equal(decimal.NewFromInt(10)))
	assert.True(t, detail.DiscountedPrice.Equal(decimal.NewFromInt(460)))
}
