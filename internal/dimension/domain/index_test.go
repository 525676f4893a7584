package domain

import (
	"testing"
	"time"

	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() Tables {
	return Tables{
		Orders: []OrderRow{
			{OrdersKey: 1, PlatformOrderID: "L-100", PlatformKey: 1, OrderDate: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), TotalItemCount: 2},
			{OrdersKey: 2, PlatformOrderID: "S-100", PlatformKey: 2, TotalItemCount: 1},
			{OrdersKey: 3, PlatformOrderID: "L-100", PlatformKey: 1},
		},
		Customers: []CustomerRow{
			{CustomerKey: 10, PlatformCustomerID: "LZAB1234", PlatformKey: 1},
			{CustomerKey: 11, PlatformCustomerID: "998877", PlatformKey: 0},
		},
		Products: []ProductRow{
			{ProductKey: 100, ProductItemID: "555", PlatformKey: 1},
			{ProductKey: 200, ProductItemID: "555", PlatformKey: 2},
		},
		Variants: []VariantRow{
			{ProductVariantKey: 1000, PlatformSKUID: "SKU-A", ProductKey: 100, PlatformKey: 1},
			{ProductVariantKey: 1001, PlatformSKUID: "SKU-B", ProductKey: 100, PlatformKey: 1},
			{ProductVariantKey: 2000, PlatformSKUID: "777", ProductKey: 200, PlatformKey: 2},
			{ProductVariantKey: 2009, PlatformSKUID: "DEFAULT_200", ProductKey: 200, PlatformKey: 2},
		},
	}
}

func TestIndexLookups(t *testing.T) {
	idx, err := NewIndex(sampleTables())
	require.NoError(t, err)

	ref, ok := idx.Order(platform.Lazada, " L-100 ")
	require.True(t, ok)
	assert.Equal(t, int64(1), ref.Key)
	assert.Equal(t, int64(2), ref.TotalItemCount)

	_, ok = idx.Order(platform.Shopee, "L-100")
	assert.False(t, ok, "natural ids are scoped per platform")

	key, ok := idx.Product(platform.Shopee, "555")
	require.True(t, ok)
	assert.Equal(t, int64(200), key)

	key, ok = idx.Customer(platform.Shopee, "998877")
	require.True(t, ok, "rows without platform_key match any platform")
	assert.Equal(t, int64(11), key)

	key, ok = idx.Customer(platform.Lazada, "nobody")
	assert.False(t, ok)
	assert.Zero(t, key)

	assert.Equal(t, 1, idx.Stats().Duplicates[TableOrder])
	assert.Equal(t, int64(3), idx.DeclaredUnits())
}

func TestIndexDefaultVariant(t *testing.T) {
	idx, err := NewIndex(sampleTables())
	require.NoError(t, err)

	key, ok := idx.DefaultVariant(platform.Lazada, 100)
	require.True(t, ok)
	assert.Equal(t, int64(1000), key, "first variant of the product")

	key, ok = idx.DefaultVariant(platform.Shopee, 200)
	require.True(t, ok)
	assert.Equal(t, int64(2009), key, "explicit DEFAULT_ row wins")

	_, ok = idx.DefaultVariant(platform.Shopee, 300)
	assert.False(t, ok)
}

func TestIndexRequiredTables(t *testing.T) {
	tables := sampleTables()
	tables.Variants = nil
	_, err := NewIndex(tables)
	require.NoError(t, err, "variants are optional")

	tables.Customers = nil
	_, err = NewIndex(tables)
	assert.ErrorIs(t, err, ErrEmptyDimension)
}
