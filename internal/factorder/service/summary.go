package service

import (
	"github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	"github.com/shopspring/decimal"
)

// Summary is the end-of-run overview of the fact table.
type Summary struct {
	Rows            int             `json:"rows"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalItems      int64           `json:"total_items"`
	AvgUnitPrice    decimal.Decimal `json:"avg_unit_price"`
	MinTimeKey      int64           `json:"min_time_key"`
	MaxTimeKey      int64           `json:"max_time_key"`
	Orders          int             `json:"orders"`
	Customers       int             `json:"customers"`
	Products        int             `json:"products"`
	VariantCoverage decimal.Decimal `json:"variant_coverage"`
	RowsByPlatform  map[int64]int   `json:"rows_by_platform"`
}

func Summarize(rows []domain.FactOrderLine) Summary {
	s := Summary{
		Rows:            len(rows),
		TotalRevenue:    decimal.Zero,
		AvgUnitPrice:    decimal.Zero,
		VariantCoverage: decimal.Zero,
		RowsByPlatform:  map[int64]int{},
	}
	if len(rows) == 0 {
		return s
	}

	orders := map[int64]struct{}{}
	customers := map[int64]struct{}{}
	products := map[int64]struct{}{}
	withVariant := 0
	s.MinTimeKey = rows[0].TimeKey
	s.MaxTimeKey = rows[0].TimeKey

	for _, r := range rows {
		s.TotalRevenue = s.TotalRevenue.Add(r.PaidPrice.Mul(decimal.NewFromInt(r.ItemQuantity)))
		s.TotalItems += r.ItemQuantity
		s.MinTimeKey = min(s.MinTimeKey, r.TimeKey)
		s.MaxTimeKey = max(s.MaxTimeKey, r.TimeKey)
		s.RowsByPlatform[r.PlatformKey]++
		orders[r.OrdersKey] = struct{}{}
		customers[r.CustomerKey] = struct{}{}
		products[r.ProductKey] = struct{}{}
		if r.ProductVariantKey != nil {
			withVariant++
		}
	}

	s.Orders = len(orders)
	s.Customers = len(customers)
	s.Products = len(products)
	if s.TotalItems > 0 {
		s.AvgUnitPrice = s.TotalRevenue.Div(decimal.NewFromInt(s.TotalItems)).Round(2)
	}
	s.VariantCoverage = decimal.NewFromInt(int64(withVariant)).
		Div(decimal.NewFromInt(int64(len(rows)))).
		Round(4)
	return s
}
