package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/railzwaylabs/orderrecon/internal/platform"
)

// Index holds one hash map per dimension. It is immutable once built and
// safe for concurrent reads.
type Index struct {
	orders    map[NaturalKey]OrderRef
	customers map[NaturalKey]int64
	products  map[NaturalKey]int64
	variants  map[NaturalKey]int64

	orderKeys    map[int64]OrderRef
	customerKeys map[int64]struct{}
	productKeys  map[int64]struct{}
	variantKeys  map[int64]struct{}

	duplicates map[Table]int
}

type IndexStats struct {
	Orders     int           `json:"orders"`
	Customers  int           `json:"customers"`
	Products   int           `json:"products"`
	Variants   int           `json:"variants"`
	Duplicates map[Table]int `json:"duplicates,omitempty"`
}

// NewIndex builds the lookups. The order, customer and product tables are
// required; the variant table may be empty.
func NewIndex(t Tables) (*Index, error) {
	switch {
	case len(t.Orders) == 0:
		return nil, fmt.Errorf("%w: %s", ErrEmptyDimension, TableOrder)
	case len(t.Customers) == 0:
		return nil, fmt.Errorf("%w: %s", ErrEmptyDimension, TableCustomer)
	case len(t.Products) == 0:
		return nil, fmt.Errorf("%w: %s", ErrEmptyDimension, TableProduct)
	}

	idx := &Index{
		orders:       make(map[NaturalKey]OrderRef, len(t.Orders)),
		customers:    make(map[NaturalKey]int64, len(t.Customers)),
		products:     make(map[NaturalKey]int64, len(t.Products)),
		variants:     make(map[NaturalKey]int64, len(t.Variants)),
		orderKeys:    make(map[int64]OrderRef, len(t.Orders)),
		customerKeys: make(map[int64]struct{}, len(t.Customers)),
		productKeys:  make(map[int64]struct{}, len(t.Products)),
		variantKeys:  make(map[int64]struct{}, len(t.Variants)),
		duplicates:   make(map[Table]int),
	}

	for _, row := range t.Orders {
		ref := OrderRef{Key: row.OrdersKey, OrderDate: row.OrderDate, TotalItemCount: row.TotalItemCount}
		if !putFirst(idx.orders, naturalKey(row.PlatformKey, row.PlatformOrderID), ref) {
			idx.duplicates[TableOrder]++
			continue
		}
		idx.orderKeys[row.OrdersKey] = ref
	}
	for _, row := range t.Customers {
		if !putFirst(idx.customers, naturalKey(row.PlatformKey, row.PlatformCustomerID), row.CustomerKey) {
			idx.duplicates[TableCustomer]++
			continue
		}
		idx.customerKeys[row.CustomerKey] = struct{}{}
	}
	for _, row := range t.Products {
		if !putFirst(idx.products, naturalKey(row.PlatformKey, row.ProductItemID), row.ProductKey) {
			idx.duplicates[TableProduct]++
			continue
		}
		idx.productKeys[row.ProductKey] = struct{}{}
	}

	// Explicit DEFAULT_<product_key> rows take precedence over the first
	// variant seen for a product.
	firstByProduct := make(map[NaturalKey]int64)
	for _, row := range t.Variants {
		key := naturalKey(row.PlatformKey, row.PlatformSKUID)
		if !putFirst(idx.variants, key, row.ProductVariantKey) {
			idx.duplicates[TableVariant]++
			continue
		}
		idx.variantKeys[row.ProductVariantKey] = struct{}{}
		if row.ProductKey != 0 {
			putFirst(firstByProduct, naturalKey(row.PlatformKey, DefaultVariantID(row.ProductKey)), row.ProductVariantKey)
		}
	}
	for key, variantKey := range firstByProduct {
		putFirst(idx.variants, key, variantKey)
	}

	return idx, nil
}

func putFirst[V any](m map[NaturalKey]V, key NaturalKey, v V) bool {
	if key.ID == "" {
		return false
	}
	if _, ok := m[key]; ok {
		return false
	}
	m[key] = v
	return true
}

func naturalKey(platformKey int64, id string) NaturalKey {
	p, _ := platform.FromKey(platformKey)
	return NaturalKey{Platform: p, ID: strings.TrimSpace(id)}
}

func lookup[V any](m map[NaturalKey]V, p platform.Platform, id string) (V, bool) {
	id = strings.TrimSpace(id)
	if v, ok := m[NaturalKey{Platform: p, ID: id}]; ok {
		return v, true
	}
	v, ok := m[NaturalKey{ID: id}]
	return v, ok
}

func DefaultVariantID(productKey int64) string {
	return DefaultVariantPrefix + strconv.FormatInt(productKey, 10)
}

func (i *Index) Order(p platform.Platform, platformOrderID string) (OrderRef, bool) {
	return lookup(i.orders, p, platformOrderID)
}

func (i *Index) Customer(p platform.Platform, platformCustomerID string) (int64, bool) {
	return lookup(i.customers, p, platformCustomerID)
}

func (i *Index) Product(p platform.Platform, productItemID string) (int64, bool) {
	return lookup(i.products, p, productItemID)
}

func (i *Index) Variant(p platform.Platform, platformSKUID string) (int64, bool) {
	return lookup(i.variants, p, platformSKUID)
}

func (i *Index) DefaultVariant(p platform.Platform, productKey int64) (int64, bool) {
	return lookup(i.variants, p, DefaultVariantID(productKey))
}

// OrderByKey resolves a surrogate orders_key back to its dimension row.
func (i *Index) OrderByKey(key int64) (OrderRef, bool) {
	ref, ok := i.orderKeys[key]
	return ref, ok
}

func (i *Index) HasCustomerKey(key int64) bool {
	_, ok := i.customerKeys[key]
	return ok
}

func (i *Index) HasProductKey(key int64) bool {
	_, ok := i.productKeys[key]
	return ok
}

func (i *Index) HasVariantKey(key int64) bool {
	_, ok := i.variantKeys[key]
	return ok
}

// DeclaredUnits sums total_item_count over every indexed order.
func (i *Index) DeclaredUnits() int64 {
	var total int64
	for _, ref := range i.orderKeys {
		total += ref.TotalItemCount
	}
	return total
}

func (i *Index) Stats() IndexStats {
	dup := make(map[Table]int, len(i.duplicates))
	for k, v := range i.duplicates {
		dup[k] = v
	}
	return IndexStats{
		Orders:     len(i.orders),
		Customers:  len(i.customers),
		Products:   len(i.products),
		Variants:   len(i.variants),
		Duplicates: dup,
	}
}
