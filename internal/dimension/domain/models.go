package domain

import (
	"errors"
	"time"

	"github.com/railzwaylabs/orderrecon/internal/platform"
)

var (
	ErrMissingDimension = errors.New("missing_dimension")
	ErrEmptyDimension   = errors.New("empty_dimension")
	ErrInvalidRow       = errors.New("invalid_dimension_row")
)

type Table string

const (
	TableOrder    Table = "dim_order"
	TableCustomer Table = "dim_customer"
	TableProduct  Table = "dim_product"
	TableVariant  Table = "dim_product_variant"
)

// DefaultVariantPrefix marks the synthetic variant used for lines without an
// explicit variant.
const DefaultVariantPrefix = "DEFAULT_"

// NaturalKey is a platform-native identifier scoped to its platform. Rows
// without a platform_key are stored with an empty Platform and match any
// platform.
type NaturalKey struct {
	Platform platform.Platform
	ID       string
}

type OrderRow struct {
	OrdersKey       int64     `gorm:"column:orders_key"`
	PlatformOrderID string    `gorm:"column:platform_order_id"`
	OrderDate       time.Time `gorm:"column:order_date"`
	TotalItemCount  int64     `gorm:"column:total_item_count"`
	PlatformKey     int64     `gorm:"column:platform_key"`
}

type CustomerRow struct {
	CustomerKey        int64  `gorm:"column:customer_key"`
	PlatformCustomerID string `gorm:"column:platform_customer_id"`
	PlatformKey        int64  `gorm:"column:platform_key"`
}

type ProductRow struct {
	ProductKey    int64  `gorm:"column:product_key"`
	ProductItemID string `gorm:"column:product_item_id"`
	PlatformKey   int64  `gorm:"column:platform_key"`
}

type VariantRow struct {
	ProductVariantKey int64  `gorm:"column:product_variant_key"`
	PlatformSKUID     string `gorm:"column:platform_sku_id"`
	ProductKey        int64  `gorm:"column:product_key"`
	PlatformKey       int64  `gorm:"column:platform_key"`
}

// Tables is the raw content of the materialized dimension tables. Variants
// is nil when the variant table is absent.
type Tables struct {
	Orders    []OrderRow
	Customers []CustomerRow
	Products  []ProductRow
	Variants  []VariantRow
	Skipped   map[Table]int
}

// OrderRef is what the order lookup resolves to.
type OrderRef struct {
	Key            int64
	OrderDate      time.Time
	TotalItemCount int64
}
