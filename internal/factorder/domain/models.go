package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidFactRow = errors.New("invalid_fact_row")
	ErrMissingColumn  = errors.New("missing_fact_column")
)

// FactOrderLine is one row of fact_orders: one physical unit sold.
type FactOrderLine struct {
	OrderItemKey           string          `gorm:"column:order_item_key;primaryKey;size:16" json:"order_item_key"`
	OrdersKey              int64           `gorm:"column:orders_key;not null;index" json:"orders_key"`
	ProductKey             int64           `gorm:"column:product_key;not null" json:"product_key"`
	ProductVariantKey      *int64          `gorm:"column:product_variant_key" json:"product_variant_key"`
	TimeKey                int64           `gorm:"column:time_key;not null;index" json:"time_key"`
	CustomerKey            int64           `gorm:"column:customer_key;not null" json:"customer_key"`
	PlatformKey            int64           `gorm:"column:platform_key;not null" json:"platform_key"`
	ItemQuantity           int64           `gorm:"column:item_quantity;not null" json:"item_quantity"`
	PaidPrice              decimal.Decimal `gorm:"column:paid_price;type:numeric(12,2);not null" json:"paid_price"`
	OriginalUnitPrice      decimal.Decimal `gorm:"column:original_unit_price;type:numeric(12,2);not null" json:"original_unit_price"`
	VoucherPlatformAmount  decimal.Decimal `gorm:"column:voucher_platform_amount;type:numeric(12,2);not null" json:"voucher_platform_amount"`
	VoucherSellerAmount    decimal.Decimal `gorm:"column:voucher_seller_amount;type:numeric(12,2);not null" json:"voucher_seller_amount"`
	ShippingFeePaidByBuyer decimal.Decimal `gorm:"column:shipping_fee_paid_by_buyer;type:numeric(12,2);not null" json:"shipping_fee_paid_by_buyer"`
}

func (FactOrderLine) TableName() string {
	return "fact_orders"
}

// Columns is the output column order.
var Columns = []string{
	"order_item_key",
	"orders_key",
	"product_key",
	"product_variant_key",
	"time_key",
	"customer_key",
	"platform_key",
	"item_quantity",
	"paid_price",
	"original_unit_price",
	"voucher_platform_amount",
	"voucher_seller_amount",
	"shipping_fee_paid_by_buyer",
}

const moneyPlaces = 2

// Record renders the row in Columns order. A null variant key is an empty
// field; money has two decimal places.
func (l FactOrderLine) Record() []string {
	variant := ""
	if l.ProductVariantKey != nil {
		variant = strconv.FormatInt(*l.ProductVariantKey, 10)
	}
	return []string{
		l.OrderItemKey,
		strconv.FormatInt(l.OrdersKey, 10),
		strconv.FormatInt(l.ProductKey, 10),
		variant,
		strconv.FormatInt(l.TimeKey, 10),
		strconv.FormatInt(l.CustomerKey, 10),
		strconv.FormatInt(l.PlatformKey, 10),
		strconv.FormatInt(l.ItemQuantity, 10),
		l.PaidPrice.StringFixed(moneyPlaces),
		l.OriginalUnitPrice.StringFixed(moneyPlaces),
		l.VoucherPlatformAmount.StringFixed(moneyPlaces),
		l.VoucherSellerAmount.StringFixed(moneyPlaces),
		l.ShippingFeePaidByBuyer.StringFixed(moneyPlaces),
	}
}

// ContentKey renders every field except order_item_key. Two runs over the
// same inputs produce the same multiset of content keys.
func (l FactOrderLine) ContentKey() string {
	return strings.Join(l.Record()[1:], "|")
}

// ParseRecord reads a row written by Record. index maps column names to
// field positions.
func ParseRecord(index map[string]int, fields []string) (FactOrderLine, error) {
	get := func(col string) (string, error) {
		i, ok := index[col]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
		if i >= len(fields) {
			return "", nil
		}
		return strings.TrimSpace(fields[i]), nil
	}
	intField := func(col string) (int64, error) {
		raw, err := get(col)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrInvalidFactRow, col, raw)
		}
		return v, nil
	}
	moneyField := func(col string) (decimal.Decimal, error) {
		raw, err := get(col)
		if err != nil {
			return decimal.Zero, err
		}
		if raw == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrInvalidFactRow, col, raw)
		}
		return v, nil
	}

	var (
		row FactOrderLine
		err error
	)
	if row.OrderItemKey, err = get("order_item_key"); err != nil {
		return FactOrderLine{}, err
	}
	if row.OrdersKey, err = intField("orders_key"); err != nil {
		return FactOrderLine{}, err
	}
	if row.ProductKey, err = intField("product_key"); err != nil {
		return FactOrderLine{}, err
	}
	variant, err := get("product_variant_key")
	if err != nil {
		return FactOrderLine{}, err
	}
	if variant != "" {
		v, err := strconv.ParseInt(variant, 10, 64)
		if err != nil {
			return FactOrderLine{}, fmt.Errorf("%w: product_variant_key=%q", ErrInvalidFactRow, variant)
		}
		row.ProductVariantKey = &v
	}
	if row.TimeKey, err = intField("time_key"); err != nil {
		return FactOrderLine{}, err
	}
	if row.CustomerKey, err = intField("customer_key"); err != nil {
		return FactOrderLine{}, err
	}
	if row.PlatformKey, err = intField("platform_key"); err != nil {
		return FactOrderLine{}, err
	}
	if row.ItemQuantity, err = intField("item_quantity"); err != nil {
		return FactOrderLine{}, err
	}
	if row.PaidPrice, err = moneyField("paid_price"); err != nil {
		return FactOrderLine{}, err
	}
	if row.OriginalUnitPrice, err = moneyField("original_unit_price"); err != nil {
		return FactOrderLine{}, err
	}
	if row.VoucherPlatformAmount, err = moneyField("voucher_platform_amount"); err != nil {
		return FactOrderLine{}, err
	}
	if row.VoucherSellerAmount, err = moneyField("voucher_seller_amount"); err != nil {
		return FactOrderLine{}, err
	}
	if row.ShippingFeePaidByBuyer, err = moneyField("shipping_fee_paid_by_buyer"); err != nil {
		return FactOrderLine{}, err
	}
	return row, nil
}

// Sink receives the complete fact table of one run and replaces whatever it
// held before.
type Sink interface {
	Name() string
	Write(ctx context.Context, rows []FactOrderLine) error
}
