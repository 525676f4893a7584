package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	"github.com/railzwaylabs/orderrecon/internal/factorder/domain"
)

const orderItemKeyPrefix = "OI"

// OrderItemKey formats the synthetic per-unit key: OI + 8 digit sequence.
func OrderItemKey(seq int) string {
	return fmt.Sprintf("%s%08d", orderItemKeyPrefix, seq)
}

// TimeKey returns the YYYYMMDD key of t in its own location.
func TimeKey(t time.Time) int64 {
	y, m, d := t.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// Assemble expands the allocated lines to unit grain and numbers them in
// output order starting at OI00000001.
func Assemble(lines []allocdomain.LineAllocation) []domain.FactOrderLine {
	var total int64
	for _, l := range lines {
		total += max(l.Units, 0)
	}

	rows := make([]domain.FactOrderLine, 0, total)
	seq := 0
	for _, line := range lines {
		for _, unit := range line.Expand() {
			seq++
			rows = append(rows, domain.FactOrderLine{
				OrderItemKey:           OrderItemKey(seq),
				OrdersKey:              unit.OrdersKey,
				ProductKey:             unit.ProductKey,
				ProductVariantKey:      unit.VariantKey,
				TimeKey:                TimeKey(unit.OrderDate),
				CustomerKey:            unit.CustomerKey,
				PlatformKey:            unit.Platform.Key(),
				ItemQuantity:           unit.Units,
				PaidPrice:              unit.PaidPrice,
				OriginalUnitPrice:      unit.OriginalUnitPrice,
				VoucherPlatformAmount:  unit.VoucherPlatform,
				VoucherSellerAmount:    unit.VoucherSeller,
				ShippingFeePaidByBuyer: unit.Shipping,
			})
		}
	}
	return rows
}

// Checksum hashes the row content independent of order_item_key and of row
// order.
func Checksum(rows []domain.FactOrderLine) string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.ContentKey()
	}
	sort.Strings(keys)

	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}
