package domain

import (
	"strings"

	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
)

// DefaultModelID stands in for a line that carries no variant discriminator.
const DefaultModelID = "0"

// ItemKey identifies one (item, model) pair inside one platform order.
// Build it with NewItemKey on both the order side and the payment side.
type ItemKey struct {
	Platform platform.Platform
	OrderID  string
	ItemID   string
	ModelID  string
}

func NewItemKey(p platform.Platform, orderID, itemID, modelID string) ItemKey {
	return ItemKey{
		Platform: p,
		OrderID:  strings.TrimSpace(orderID),
		ItemID:   strings.TrimSpace(itemID),
		ModelID:  NormalizeModelID(modelID),
	}
}

func NormalizeModelID(modelID string) string {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return DefaultModelID
	}
	return modelID
}

// PaymentDetailItem is the platform-reported money breakdown for one
// (item, model) line. Amounts are line totals, not per unit.
type PaymentDetailItem struct {
	ItemID                      string
	ModelID                     string
	DiscountFromPlatformVoucher decimal.Decimal
	DiscountFromSellerVoucher   decimal.Decimal
	DiscountedPrice             decimal.Decimal
}

// OrderPayment groups the item breakdowns of one order together with the
// order-level voucher totals used by the fallback allocation path.
type OrderPayment struct {
	Platform          platform.Platform
	OrderID           string
	Items             []PaymentDetailItem
	VoucherPlatform   decimal.Decimal
	VoucherSeller     decimal.Decimal
	BuyerPaidShipping decimal.Decimal
}

func (o OrderPayment) HasOrderVouchers() bool {
	return !o.VoucherPlatform.IsZero() || !o.VoucherSeller.IsZero()
}

type Stats struct {
	Orders          int `json:"orders"`
	Items           int `json:"items"`
	Duplicates      int `json:"duplicates"`
	DuplicateOrders int `json:"duplicate_orders"`
}
