package service

import (
	"sort"

	dimensiondomain "github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	factdomain "github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	"github.com/railzwaylabs/orderrecon/internal/validation/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultMaxFindings = 1000

// References is the dimension side of the integrity and unit checks.
type References interface {
	OrderByKey(key int64) (dimensiondomain.OrderRef, bool)
	HasCustomerKey(key int64) bool
	HasProductKey(key int64) bool
	HasVariantKey(key int64) bool
	DeclaredUnits() int64
}

type Validator struct {
	log         *zap.Logger
	tolerance   decimal.Decimal
	maxFindings int
}

func NewValidator(log *zap.Logger, tolerance decimal.Decimal, maxFindings int) *Validator {
	if maxFindings <= 0 {
		maxFindings = DefaultMaxFindings
	}
	return &Validator{
		log:         log.Named("validation.service"),
		tolerance:   tolerance,
		maxFindings: maxFindings,
	}
}

// Validate checks paid = original - platform voucher - seller voucher on every
// row. refs may be nil, in which case only the numeric checks run. The
// report is diagnostic; rows are never changed.
func (v *Validator) Validate(rows []factdomain.FactOrderLine, refs References) domain.Report {
	report := domain.NewReport(v.tolerance)
	for _, row := range rows {
		report.Record(v.Check(row), v.maxFindings)
	}

	if refs != nil {
		report.Integrity = integrity(rows, refs)
		report.UnitConservation = unitConservation(rows, refs)
	}

	v.log.Info("reconciliation checked",
		zap.Int("rows", report.Tally.Rows),
		zap.Int("exact", report.Tally.Exact),
		zap.Int("within_tolerance", report.Tally.WithinTolerance),
		zap.Int("discrepancy", report.Tally.Discrepancy),
		zap.Int("overshoot", report.Tally.Overshoot),
		zap.Int("negative_paid", report.Tally.NegativePaid),
		zap.String("total_discrepancy", report.Tally.TotalDiscrepancy.StringFixed(2)),
	)
	if report.Tally.Overshoot > 0 {
		v.log.Warn("voucher overshoot detected", zap.Int("rows", report.Tally.Overshoot))
	}
	return report
}

func (v *Validator) Check(row factdomain.FactOrderLine) domain.Finding {
	vouchers := row.VoucherPlatformAmount.Add(row.VoucherSellerAmount)
	expected := row.OriginalUnitPrice.Sub(vouchers)
	diff := row.PaidPrice.Sub(expected).Abs()

	class := domain.ClassExact
	switch {
	case diff.IsZero():
	case diff.LessThanOrEqual(v.tolerance):
		class = domain.ClassWithinTolerance
	default:
		class = domain.ClassDiscrepancy
	}

	return domain.Finding{
		OrderItemKey:    row.OrderItemKey,
		OrdersKey:       row.OrdersKey,
		PlatformKey:     row.PlatformKey,
		Class:           class,
		Overshoot:       vouchers.GreaterThan(row.OriginalUnitPrice),
		NegativePaid:    row.PaidPrice.IsNegative(),
		Original:        row.OriginalUnitPrice,
		VoucherPlatform: row.VoucherPlatformAmount,
		VoucherSeller:   row.VoucherSellerAmount,
		Paid:            row.PaidPrice,
		Expected:        expected,
		Diff:            diff,
	}
}

func integrity(rows []factdomain.FactOrderLine, refs References) *domain.Integrity {
	out := &domain.Integrity{}
	for _, row := range rows {
		if _, ok := refs.OrderByKey(row.OrdersKey); !ok {
			out.OrphanOrders++
		}
		if !refs.HasCustomerKey(row.CustomerKey) {
			out.OrphanCustomers++
		}
		if !refs.HasProductKey(row.ProductKey) {
			out.OrphanProducts++
		}
		if row.ProductVariantKey != nil && !refs.HasVariantKey(*row.ProductVariantKey) {
			out.OrphanVariants++
		}
	}
	return out
}

// unitConservation checks every emitted order against its declared
// total_item_count. Orders declaring zero items carry no count and are
// skipped.
func unitConservation(rows []factdomain.FactOrderLine, refs References) *domain.UnitConservation {
	emitted := map[int64]int64{}
	var total int64
	for _, row := range rows {
		emitted[row.OrdersKey] += row.ItemQuantity
		total += row.ItemQuantity
	}

	out := &domain.UnitConservation{
		DeclaredTotal: refs.DeclaredUnits(),
		EmittedTotal:  total,
		Mismatches:    []domain.UnitMismatch{},
	}
	for ordersKey, units := range emitted {
		ref, ok := refs.OrderByKey(ordersKey)
		if !ok || ref.TotalItemCount <= 0 {
			continue
		}
		out.OrdersChecked++
		if units == ref.TotalItemCount {
			continue
		}
		out.Mismatches = append(out.Mismatches, domain.UnitMismatch{
			OrdersKey: ordersKey,
			Declared:  ref.TotalItemCount,
			Emitted:   units,
		})
		if units < ref.TotalItemCount {
			out.MissingUnits += ref.TotalItemCount - units
		} else {
			out.UnexpectedUnits += units - ref.TotalItemCount
		}
	}
	sort.Slice(out.Mismatches, func(i, j int) bool {
		return out.Mismatches[i].OrdersKey < out.Mismatches[j].OrdersKey
	})
	return out
}
