package staging

import (
	"strings"
	"time"
	"unicode"

	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/shopspring/decimal"
)

type lazadaOrder struct {
	OrderID           ID     `json:"order_id"`
	CreatedAt         string `json:"created_at"`
	CustomerFirstName string `json:"customer_first_name"`
	AddressShipping   struct {
		FirstName string `json:"first_name"`
		Phone     ID     `json:"phone"`
	} `json:"address_shipping"`
}

type lazadaOrderItems struct {
	OrderID    ID           `json:"order_id"`
	OrderItems []lazadaItem `json:"order_items"`
}

type lazadaItem struct {
	OrderID         ID     `json:"order_id"`
	ItemID          ID     `json:"item_id"`
	ProductID       ID     `json:"product_id"`
	SkuID           ID     `json:"sku_id"`
	Quantity        Count  `json:"quantity"`
	ItemPrice       Amount `json:"item_price"`
	PaidPrice       Amount `json:"paid_price"`
	VoucherPlatform Amount `json:"voucher_platform"`
	VoucherSeller   Amount `json:"voucher_seller"`
	ShippingAmount  Amount `json:"shipping_amount"`
}

func (i lazadaItem) itemID() string {
	if i.ItemID != "" {
		return i.ItemID.String()
	}
	return i.ProductID.String()
}

var lazadaTimeLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseLazadaTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range lazadaTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

type lazadaLineAcc struct {
	itemID, skuID   string
	quantity        int64
	itemPrice       decimal.Decimal
	paidPrice       decimal.Decimal
	voucherPlatform decimal.Decimal
	voucherSeller   decimal.Decimal
	shipping        decimal.Decimal
}

type lazadaResult struct {
	orders      []allocdomain.RawOrder
	payments    []paymentdomain.OrderPayment
	orphanItems int
}

// buildLazada joins the order headers with their item rows. Item rows for the
// same (item_id, sku_id) are merged into one line; their voucher fields become
// the order's payment detail items.
func buildLazada(orders []lazadaOrder, itemRecords []lazadaOrderItems) lazadaResult {
	byOrder := make(map[string][]lazadaItem, len(itemRecords))
	for _, rec := range itemRecords {
		for _, item := range rec.OrderItems {
			orderID := rec.OrderID.String()
			if orderID == "" {
				orderID = item.OrderID.String()
			}
			byOrder[orderID] = append(byOrder[orderID], item)
		}
	}

	var res lazadaResult
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		orderID := o.OrderID.String()
		if orderID == "" {
			continue
		}
		seen[orderID] = struct{}{}

		firstName := o.CustomerFirstName
		if firstName == "" {
			firstName = o.AddressShipping.FirstName
		}

		raw := allocdomain.RawOrder{
			Platform:   platform.Lazada,
			OrderID:    orderID,
			CustomerID: LazadaCustomerID(firstName, o.AddressShipping.Phone.String()),
			CreatedAt:  parseLazadaTime(o.CreatedAt),
		}
		payment := paymentdomain.OrderPayment{Platform: platform.Lazada, OrderID: orderID}

		for _, acc := range mergeLazadaItems(byOrder[orderID]) {
			qty := decimal.NewFromInt(acc.quantity)
			line := allocdomain.RawOrderLine{
				OrderID:      orderID,
				ItemID:       acc.itemID,
				ModelID:      paymentdomain.NormalizeModelID(acc.skuID),
				Quantity:     acc.quantity,
				LineShipping: acc.shipping,
			}
			if acc.quantity > 0 {
				line.OriginalUnitPrice = acc.itemPrice.Div(qty)
				line.PlatformDiscountedPrice = acc.paidPrice.Div(qty)
			}
			raw.Lines = append(raw.Lines, line)
			payment.Items = append(payment.Items, paymentdomain.PaymentDetailItem{
				ItemID:                      acc.itemID,
				ModelID:                     acc.skuID,
				DiscountFromPlatformVoucher: acc.voucherPlatform,
				DiscountFromSellerVoucher:   acc.voucherSeller,
				DiscountedPrice:             acc.paidPrice,
			})
		}

		res.orders = append(res.orders, raw)
		if len(payment.Items) > 0 {
			res.payments = append(res.payments, payment)
		}
	}

	for orderID, items := range byOrder {
		if _, ok := seen[orderID]; !ok {
			res.orphanItems += len(items)
		}
	}
	return res
}

func mergeLazadaItems(items []lazadaItem) []*lazadaLineAcc {
	type key struct{ itemID, skuID string }
	index := make(map[key]*lazadaLineAcc, len(items))
	var out []*lazadaLineAcc
	for _, item := range items {
		k := key{itemID: item.itemID(), skuID: item.SkuID.String()}
		acc, ok := index[k]
		if !ok {
			acc = &lazadaLineAcc{itemID: k.itemID, skuID: k.skuID}
			index[k] = acc
			out = append(out, acc)
		}
		acc.quantity += item.Quantity.Or(1)
		acc.itemPrice = acc.itemPrice.Add(item.ItemPrice.Decimal())
		acc.paidPrice = acc.paidPrice.Add(item.PaidPrice.Decimal())
		acc.voucherPlatform = acc.voucherPlatform.Add(item.VoucherPlatform.Decimal())
		acc.voucherSeller = acc.voucherSeller.Add(item.VoucherSeller.Decimal())
		acc.shipping = acc.shipping.Add(item.ShippingAmount.Decimal())
	}
	return out
}

// LazadaCustomerID derives the synthetic customer id the customer dimension
// uses for Lazada buyers: "LZ" + name initials + phone digits.
func LazadaCustomerID(firstName, phone string) string {
	first2, last2 := phoneDigits(phone)
	return "LZ" + nameChars(firstName) + first2 + last2
}

func nameChars(name string) string {
	if len([]rune(name)) < 2 {
		return "XX"
	}
	clean := []rune(strings.ReplaceAll(name, "*", ""))
	switch {
	case len(clean) >= 2:
		return string(unicode.ToUpper(clean[0])) + string(unicode.ToUpper(clean[len(clean)-1]))
	case len(clean) == 1:
		return string(unicode.ToUpper(clean[0])) + "X"
	default:
		return "XX"
	}
}

func phoneDigits(phone string) (string, string) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) >= 4:
		return digits[:2], digits[len(digits)-2:]
	case len(digits) >= 2:
		return digits[:2], digits[:2]
	default:
		return "00", "00"
	}
}
