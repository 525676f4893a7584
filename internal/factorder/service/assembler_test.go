package service

import (
	"testing"
	"time"

	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variant(v int64) *int64 { return &v }

func sampleLines() []allocdomain.LineAllocation {
	manila := time.FixedZone("PHT", 8*3600)
	return []allocdomain.LineAllocation{
		{
			Platform: platform.Lazada, OrdersKey: 1, CustomerKey: 10, ProductKey: 100, VariantKey: variant(1000),
			OrderDate: time.Date(2022, 10, 5, 21, 2, 52, 0, manila), Units: 2,
			OriginalUnitPrice: decimal.NewFromInt(250), PaidPrice: decimal.NewFromInt(230),
			VoucherPlatform: decimal.NewFromInt(15), VoucherSeller: decimal.NewFromInt(5), Shipping: decimal.NewFromInt(10),
		},
		{
			Platform: platform.Shopee, OrdersKey: 2, CustomerKey: 11, ProductKey: 200,
			OrderDate: time.Date(2023, 7, 8, 0, 0, 0, 0, time.UTC), Units: 1,
			OriginalUnitPrice: decimal.NewFromInt(100), PaidPrice: decimal.NewFromInt(100),
		},
	}
}

func TestAssemble(t *testing.T) {
	rows := Assemble(sampleLines())
	require.Len(t, rows, 3)

	assert.Equal(t, "OI00000001", rows[0].OrderItemKey)
	assert.Equal(t, "OI00000003", rows[2].OrderItemKey)
	assert.Equal(t, int64(20221005), rows[0].TimeKey)
	assert.Equal(t, int64(1), rows[1].PlatformKey)
	assert.Equal(t, int64(2), rows[2].PlatformKey)
	for _, r := range rows {
		assert.Equal(t, int64(1), r.ItemQuantity)
	}
	assert.Nil(t, rows[2].ProductVariantKey)
	assert.Equal(t, []string{
		"OI00000001", "1", "100", "1000", "20221005", "10", "1", "1",
		"230.00", "250.00", "15.00", "5.00", "10.00",
	}, rows[0].Record())
}

func TestChecksumIgnoresKeysAndOrder(t *testing.T) {
	lines := sampleLines()
	first := Assemble(lines)
	reversed := Assemble([]allocdomain.LineAllocation{lines[1], lines[0]})

	assert.NotEqual(t, first[0].OrderItemKey+first[0].ContentKey(), reversed[0].OrderItemKey+reversed[0].ContentKey())
	assert.Equal(t, Checksum(first), Checksum(reversed))

	reversed[0].PaidPrice = decimal.NewFromInt(99)
	assert.NotEqual(t, Checksum(first), Checksum(reversed))
}

func TestSummarize(t *testing.T) {
	s := Summarize(Assemble(sampleLines()))

	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, int64(3), s.TotalItems)
	assert.True(t, s.TotalRevenue.Equal(decimal.NewFromInt(560)))
	assert.True(t, s.AvgUnitPrice.Equal(decimal.RequireFromString("186.67")))
	assert.Equal(t, int64(20221005), s.MinTimeKey)
	assert.Equal(t, int64(20230708), s.MaxTimeKey)
	assert.Equal(t, 2, s.Orders)
	assert.True(t, s.VariantCoverage.Equal(decimal.RequireFromString("0.6667")))
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, s.RowsByPlatform)

	empty := Summarize(nil)
	assert.Zero(t, empty.Rows)
}
