package domain

import "github.com/shopspring/decimal"

type Class string

const (
	ClassExact           Class = "exact"
	ClassWithinTolerance Class = "within_tolerance"
	ClassDiscrepancy     Class = "discrepancy"
)

// Tally counts rows per outcome.
type Tally struct {
	Rows             int             `json:"rows"`
	Exact            int             `json:"exact"`
	WithinTolerance  int             `json:"within_tolerance"`
	Discrepancy      int             `json:"discrepancy"`
	Overshoot        int             `json:"overshoot"`
	NegativePaid     int             `json:"negative_paid"`
	TotalDiscrepancy decimal.Decimal `json:"total_discrepancy"`
}

func (t *Tally) add(f Finding) {
	t.Rows++
	switch f.Class {
	case ClassExact:
		t.Exact++
	case ClassWithinTolerance:
		t.WithinTolerance++
	case ClassDiscrepancy:
		t.Discrepancy++
	}
	if f.Overshoot {
		t.Overshoot++
	}
	if f.NegativePaid {
		t.NegativePaid++
	}
	t.TotalDiscrepancy = t.TotalDiscrepancy.Add(f.Diff)
}

// Finding is the check outcome for one fact row.
type Finding struct {
	OrderItemKey    string          `json:"order_item_key"`
	OrdersKey       int64           `json:"orders_key"`
	PlatformKey     int64           `json:"platform_key"`
	Class           Class           `json:"class"`
	Overshoot       bool            `json:"overshoot"`
	NegativePaid    bool            `json:"negative_paid"`
	Original        decimal.Decimal `json:"original_unit_price"`
	VoucherPlatform decimal.Decimal `json:"voucher_platform_amount"`
	VoucherSeller   decimal.Decimal `json:"voucher_seller_amount"`
	Paid            decimal.Decimal `json:"paid_price"`
	Expected        decimal.Decimal `json:"expected_paid_price"`
	Diff            decimal.Decimal `json:"diff"`
}

// Flagged reports whether the row needs operator review.
func (f Finding) Flagged() bool {
	return f.Class == ClassDiscrepancy || f.Overshoot || f.NegativePaid
}

type UnitMismatch struct {
	OrdersKey int64 `json:"orders_key"`
	Declared  int64 `json:"declared"`
	Emitted   int64 `json:"emitted"`
}

// UnitConservation compares emitted units against dim_order
// total_item_count, per emitted order and over the whole dimension.
type UnitConservation struct {
	OrdersChecked   int            `json:"orders_checked"`
	Mismatches      []UnitMismatch `json:"mismatches"`
	DeclaredTotal   int64          `json:"declared_total"`
	EmittedTotal    int64          `json:"emitted_total"`
	MissingUnits    int64          `json:"missing_units"`
	UnexpectedUnits int64          `json:"unexpected_units"`
}

// Integrity counts foreign keys that do not resolve to a dimension row.
type Integrity struct {
	OrphanOrders    int `json:"orphan_orders"`
	OrphanCustomers int `json:"orphan_customers"`
	OrphanProducts  int `json:"orphan_products"`
	OrphanVariants  int `json:"orphan_variants"`
}

func (i Integrity) Total() int {
	return i.OrphanOrders + i.OrphanCustomers + i.OrphanProducts + i.OrphanVariants
}

type Report struct {
	Tolerance         decimal.Decimal   `json:"tolerance"`
	Tally             Tally             `json:"summary"`
	ByPlatform        map[int64]*Tally  `json:"by_platform"`
	Findings          []Finding         `json:"findings"`
	FindingsTruncated int               `json:"findings_truncated,omitempty"`
	UnitConservation  *UnitConservation `json:"unit_conservation,omitempty"`
	Integrity         *Integrity        `json:"integrity,omitempty"`
}

func NewReport(tolerance decimal.Decimal) Report {
	return Report{
		Tolerance:  tolerance,
		ByPlatform: map[int64]*Tally{},
	}
}

// Record adds one row outcome to the totals. Flagged rows are kept as
// findings up to max; the rest are only counted.
func (r *Report) Record(f Finding, max int) {
	r.Tally.add(f)
	pt, ok := r.ByPlatform[f.PlatformKey]
	if !ok {
		pt = &Tally{}
		r.ByPlatform[f.PlatformKey] = pt
	}
	pt.add(f)

	if !f.Flagged() {
		return
	}
	if len(r.Findings) < max {
		r.Findings = append(r.Findings, f)
		return
	}
	r.FindingsTruncated++
}

// Clean is true when no row was flagged and every reference resolved.
func (r Report) Clean() bool {
	if r.Tally.Discrepancy > 0 || r.Tally.Overshoot > 0 || r.Tally.NegativePaid > 0 {
		return false
	}
	if r.Integrity != nil && r.Integrity.Total() > 0 {
		return false
	}
	if r.UnitConservation != nil && len(r.UnitConservation.Mismatches) > 0 {
		return false
	}
	return true
}
