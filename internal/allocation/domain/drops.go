package domain

import "sort"

type DropReason string

const (
	DropUnknownOrder     DropReason = "unknown_order"
	DropUnknownCustomer  DropReason = "unknown_customer"
	DropUnknownProduct   DropReason = "unknown_product"
	DropInvalidQuantity  DropReason = "invalid_quantity"
	DropMissingOrderDate DropReason = "missing_order_date"
)

// DropTally counts excluded lines per reason.
type DropTally map[DropReason]int64

func (t DropTally) Add(reason DropReason, n int64) {
	t[reason] += n
}

func (t DropTally) Total() int64 {
	var total int64
	for _, n := range t {
		total += n
	}
	return total
}

func (t DropTally) Merge(o DropTally) {
	for k, v := range o {
		t[k] += v
	}
}

func (t DropTally) Reasons() []DropReason {
	out := make([]DropReason, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
