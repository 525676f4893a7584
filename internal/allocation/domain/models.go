package domain

import (
	"time"

	dimensiondomain "github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
)

// RawOrder is one staged marketplace order with its item lines.
type RawOrder struct {
	Platform   platform.Platform
	OrderID    string
	CustomerID string
	// CreatedAt is zero when the export carried no usable timestamp.
	CreatedAt time.Time
	Lines     []RawOrderLine
}

// TotalUnits counts the units of every line with a valid quantity.
func (o RawOrder) TotalUnits() int64 {
	var total int64
	for _, l := range o.Lines {
		if l.Quantity > 0 {
			total += l.Quantity
		}
	}
	return total
}

// RawOrderLine is one item within one raw order. Prices are per unit;
// LineShipping is the line total.
type RawOrderLine struct {
	OrderID                 string
	ItemID                  string
	ModelID                 string
	Quantity                int64
	OriginalUnitPrice       decimal.Decimal
	PlatformDiscountedPrice decimal.Decimal
	LineShipping            decimal.Decimal
}

type Source string

const (
	SourcePaymentDetail Source = "payment_detail"
	SourceOrderVoucher  Source = "order_voucher"
	SourceListPrice     Source = "list_price"
)

// LineAllocation is one resolved order line with its per-unit economics.
type LineAllocation struct {
	Platform platform.Platform
	OrderID  string
	ItemID   string
	ModelID  string

	OrdersKey   int64
	CustomerKey int64
	ProductKey  int64
	VariantKey  *int64
	OrderDate   time.Time

	Units             int64
	OriginalUnitPrice decimal.Decimal
	PaidPrice         decimal.Decimal
	VoucherPlatform   decimal.Decimal
	VoucherSeller     decimal.Decimal
	Shipping          decimal.Decimal
	Source            Source
}

// Expand returns one allocation per unit, each with Units = 1 and the same
// per-unit figures.
func (l LineAllocation) Expand() []LineAllocation {
	if l.Units <= 0 {
		return nil
	}
	out := make([]LineAllocation, l.Units)
	for i := range out {
		unit := l
		unit.Units = 1
		out[i] = unit
	}
	return out
}

type Stats struct {
	Orders               int64            `json:"orders"`
	Lines                int64            `json:"lines"`
	Units                int64            `json:"units"`
	DroppedUnits         int64            `json:"dropped_units"`
	BySource             map[Source]int64 `json:"by_source"`
	VariantDefaulted     int64            `json:"variant_defaulted"`
	VariantMissing       int64            `json:"variant_missing"`
	UnattributedDiscount int64            `json:"unattributed_discount"`
}

func (s *Stats) Merge(o Stats) {
	s.Orders += o.Orders
	s.Lines += o.Lines
	s.Units += o.Units
	s.DroppedUnits += o.DroppedUnits
	s.VariantDefaulted += o.VariantDefaulted
	s.VariantMissing += o.VariantMissing
	s.UnattributedDiscount += o.UnattributedDiscount
	if len(o.BySource) > 0 && s.BySource == nil {
		s.BySource = make(map[Source]int64, len(o.BySource))
	}
	for k, v := range o.BySource {
		s.BySource[k] += v
	}
}

type Result struct {
	Lines []LineAllocation
	Drops DropTally
	Stats Stats
}

// DimensionLookup is the read side of the dimension index.
type DimensionLookup interface {
	Order(p platform.Platform, platformOrderID string) (dimensiondomain.OrderRef, bool)
	Customer(p platform.Platform, platformCustomerID string) (int64, bool)
	Product(p platform.Platform, productItemID string) (int64, bool)
	Variant(p platform.Platform, platformSKUID string) (int64, bool)
	DefaultVariant(p platform.Platform, productKey int64) (int64, bool)
}

// PaymentLookup is the read side of the payment detail matcher.
type PaymentLookup interface {
	Find(p platform.Platform, orderID, itemID, modelID string) (paymentdomain.PaymentDetailItem, bool)
	Order(p platform.Platform, orderID string) (paymentdomain.OrderPayment, bool)
}

// Context bundles the read-only lookups an allocation run consults.
type Context struct {
	Dimensions DimensionLookup
	Payments   PaymentLookup
}
