package service

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var oneCent = decimal.New(1, -moneyPlaces)

func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(moneyPlaces)
}

// perUnit splits a total over n units and rounds to cents. n must be > 0.
func perUnit(total decimal.Decimal, n int64) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return roundMoney(total.Div(decimal.NewFromInt(n)))
}

// derivePaid keeps paid = original - platform - seller exact on rounded figures.
func derivePaid(original, platformVoucher, sellerVoucher decimal.Decimal) decimal.Decimal {
	return original.Sub(platformVoucher).Sub(sellerVoucher)
}

func int64Ptr(v int64) *int64 {
	return &v
}
