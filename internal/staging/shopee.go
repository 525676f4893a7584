package staging

import (
	"time"

	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
)

type shopeeOrder struct {
	OrderSN     ID           `json:"order_sn"`
	BuyerUserID ID           `json:"buyer_user_id"`
	CreateTime  Count        `json:"create_time"`
	ItemList    []shopeeItem `json:"item_list"`
}

type shopeeItem struct {
	ItemID          ID     `json:"item_id"`
	ModelID         ID     `json:"model_id"`
	Quantity        Count  `json:"model_quantity_purchased"`
	OriginalPrice   Amount `json:"model_original_price"`
	DiscountedPrice Amount `json:"model_discounted_price"`
}

type shopeePayment struct {
	OrderSN     ID `json:"order_sn"`
	OrderIncome struct {
		Items                []shopeePaymentItem `json:"items"`
		VoucherFromSeller    Amount              `json:"voucher_from_seller"`
		VoucherFromShopee    Amount              `json:"voucher_from_shopee"`
		BuyerPaidShippingFee Amount              `json:"buyer_paid_shipping_fee"`
	} `json:"order_income"`
	BuyerPaymentInfo struct {
		SellerVoucher Amount `json:"seller_voucher"`
		ShopeeVoucher Amount `json:"shopee_voucher"`
	} `json:"buyer_payment_info"`
}

type shopeePaymentItem struct {
	ItemID                    ID     `json:"item_id"`
	ModelID                   ID     `json:"model_id"`
	DiscountedPrice           Amount `json:"discounted_price"`
	DiscountFromVoucherShopee Amount `json:"discount_from_voucher_shopee"`
	DiscountFromVoucherSeller Amount `json:"discount_from_voucher_seller"`
}

// buildShopeeOrders converts order headers. Item lists from the separate
// items export fill orders whose header carries none.
func buildShopeeOrders(orders []shopeeOrder, itemRecords []shopeeOrder, loc *time.Location) []allocdomain.RawOrder {
	extra := make(map[string][]shopeeItem, len(itemRecords))
	for _, rec := range itemRecords {
		id := rec.OrderSN.String()
		extra[id] = append(extra[id], rec.ItemList...)
	}

	out := make([]allocdomain.RawOrder, 0, len(orders))
	for _, o := range orders {
		orderID := o.OrderSN.String()
		if orderID == "" {
			continue
		}
		raw := allocdomain.RawOrder{
			Platform:   platform.Shopee,
			OrderID:    orderID,
			CustomerID: o.BuyerUserID.String(),
		}
		if o.CreateTime.Set && o.CreateTime.Value > 0 {
			raw.CreatedAt = time.Unix(o.CreateTime.Value, 0).In(loc)
		}

		items := o.ItemList
		if len(items) == 0 {
			items = extra[orderID]
		}
		for _, item := range items {
			raw.Lines = append(raw.Lines, allocdomain.RawOrderLine{
				OrderID:                 orderID,
				ItemID:                  item.ItemID.String(),
				ModelID:                 paymentdomain.NormalizeModelID(item.ModelID.String()),
				Quantity:                item.Quantity.Or(1),
				OriginalUnitPrice:       item.OriginalPrice.Decimal(),
				PlatformDiscountedPrice: item.DiscountedPrice.Decimal(),
			})
		}
		out = append(out, raw)
	}
	return out
}

// buildShopeePayments converts escrow details. Order-level vouchers come from
// order_income and fall back to the absolute buyer_payment_info values.
func buildShopeePayments(records []shopeePayment) []paymentdomain.OrderPayment {
	out := make([]paymentdomain.OrderPayment, 0, len(records))
	for _, rec := range records {
		orderID := rec.OrderSN.String()
		if orderID == "" {
			continue
		}
		income := rec.OrderIncome
		payment := paymentdomain.OrderPayment{
			Platform:          platform.Shopee,
			OrderID:           orderID,
			VoucherPlatform:   income.VoucherFromShopee.Decimal().Abs(),
			VoucherSeller:     income.VoucherFromSeller.Decimal().Abs(),
			BuyerPaidShipping: income.BuyerPaidShippingFee.Decimal(),
		}
		if payment.VoucherPlatform.IsZero() {
			payment.VoucherPlatform = rec.BuyerPaymentInfo.ShopeeVoucher.Decimal().Abs()
		}
		if payment.VoucherSeller.IsZero() {
			payment.VoucherSeller = rec.BuyerPaymentInfo.SellerVoucher.Decimal().Abs()
		}
		for _, item := range income.Items {
			payment.Items = append(payment.Items, paymentdomain.PaymentDetailItem{
				ItemID:                      item.ItemID.String(),
				ModelID:                     item.ModelID.String(),
				DiscountFromPlatformVoucher: item.DiscountFromVoucherShopee.Decimal().Abs(),
				DiscountFromSellerVoucher:   item.DiscountFromVoucherSeller.Decimal().Abs(),
				DiscountedPrice:             item.DiscountedPrice.Decimal(),
			})
		}
		out = append(out, payment)
	}
	return out
}
