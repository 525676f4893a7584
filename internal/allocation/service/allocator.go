package service

import (
	"context"

	"github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Allocator struct {
	ctx domain.Context
	log *zap.Logger
}

func NewAllocator(ctx domain.Context, log *zap.Logger) *Allocator {
	return &Allocator{
		ctx: ctx,
		log: log.Named("allocation.service"),
	}
}

// AllocateAll allocates every order. With more than one worker the orders are
// split into contiguous partitions and allocated concurrently; partition
// results are concatenated in input order.
func (a *Allocator) AllocateAll(ctx context.Context, orders []domain.RawOrder, workers int) (domain.Result, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(orders) {
		workers = len(orders)
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}
		return a.allocateChunk(orders), nil
	}

	size := (len(orders) + workers - 1) / workers
	parts := make([]domain.Result, 0, workers)
	for start := 0; start < len(orders); start += size {
		parts = append(parts, domain.Result{})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i := i
		start := i * size
		end := min(start+size, len(orders))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = a.allocateChunk(orders[start:end])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Result{}, err
	}

	merged := domain.Result{Drops: domain.DropTally{}}
	for _, part := range parts {
		merged.Lines = append(merged.Lines, part.Lines...)
		merged.Drops.Merge(part.Drops)
		merged.Stats.Merge(part.Stats)
	}
	return merged, nil
}

func (a *Allocator) allocateChunk(orders []domain.RawOrder) domain.Result {
	res := domain.Result{
		Drops: domain.DropTally{},
		Stats: domain.Stats{BySource: map[domain.Source]int64{}},
	}
	for _, order := range orders {
		lines := a.Allocate(order, res.Drops, &res.Stats)
		res.Lines = append(res.Lines, lines...)
	}
	return res
}

// Allocate resolves one order. Lines that cannot be resolved are counted in
// drops, which must be non-nil, and left out; the lookups are never modified.
func (a *Allocator) Allocate(order domain.RawOrder, drops domain.DropTally, stats *domain.Stats) []domain.LineAllocation {
	if stats.BySource == nil {
		stats.BySource = map[domain.Source]int64{}
	}
	stats.Orders++
	dims := a.ctx.Dimensions
	p := order.Platform

	dropAll := func(reason domain.DropReason) {
		for _, line := range order.Lines {
			drops.Add(reason, 1)
			if line.Quantity > 0 {
				stats.DroppedUnits += line.Quantity
			}
		}
		a.log.Debug("order dropped",
			zap.String("platform", p.String()),
			zap.String("order_id", order.OrderID),
			zap.String("reason", string(reason)),
		)
	}

	ref, ok := dims.Order(p, order.OrderID)
	if !ok {
		dropAll(domain.DropUnknownOrder)
		return nil
	}
	customerKey, ok := dims.Customer(p, order.CustomerID)
	if !ok {
		dropAll(domain.DropUnknownCustomer)
		return nil
	}
	orderDate := order.CreatedAt
	if orderDate.IsZero() {
		orderDate = ref.OrderDate
	}
	if orderDate.IsZero() {
		dropAll(domain.DropMissingOrderDate)
		return nil
	}

	totalUnits := order.TotalUnits()
	payment, hasPayment := a.ctx.Payments.Order(p, order.OrderID)

	out := make([]domain.LineAllocation, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Quantity < 1 {
			drops.Add(domain.DropInvalidQuantity, 1)
			a.log.Warn("line with invalid quantity",
				zap.String("order_id", order.OrderID),
				zap.String("item_id", line.ItemID),
				zap.Int64("quantity", line.Quantity),
			)
			continue
		}
		productKey, ok := dims.Product(p, line.ItemID)
		if !ok {
			drops.Add(domain.DropUnknownProduct, 1)
			stats.DroppedUnits += line.Quantity
			continue
		}

		alloc := domain.LineAllocation{
			Platform:    p,
			OrderID:     order.OrderID,
			ItemID:      line.ItemID,
			ModelID:     line.ModelID,
			OrdersKey:   ref.Key,
			CustomerKey: customerKey,
			ProductKey:  productKey,
			OrderDate:   orderDate,
			Units:       line.Quantity,
		}

		if variantKey, ok := dims.Variant(p, line.ModelID); ok {
			alloc.VariantKey = int64Ptr(variantKey)
		} else if variantKey, ok := dims.DefaultVariant(p, productKey); ok {
			alloc.VariantKey = int64Ptr(variantKey)
			stats.VariantDefaulted++
		} else {
			stats.VariantMissing++
		}

		a.price(&alloc, line, payment, hasPayment, totalUnits, stats)

		stats.Lines++
		stats.Units += line.Quantity
		stats.BySource[alloc.Source]++
		out = append(out, alloc)
	}
	return out
}

func (a *Allocator) price(
	alloc *domain.LineAllocation,
	line domain.RawOrderLine,
	payment paymentdomain.OrderPayment,
	hasPayment bool,
	totalUnits int64,
	stats *domain.Stats,
) {
	original := roundMoney(line.OriginalUnitPrice)
	alloc.OriginalUnitPrice = original

	if item, ok := a.ctx.Payments.Find(alloc.Platform, alloc.OrderID, line.ItemID, line.ModelID); ok {
		alloc.Source = domain.SourcePaymentDetail
		alloc.VoucherPlatform = perUnit(item.DiscountFromPlatformVoucher, line.Quantity)
		alloc.VoucherSeller = perUnit(item.DiscountFromSellerVoucher, line.Quantity)
		derived := derivePaid(original, alloc.VoucherPlatform, alloc.VoucherSeller)
		alloc.PaidPrice = derived
		if !item.DiscountedPrice.IsZero() {
			// Within a cent the gap is rounding of the per-unit split; beyond
			// it the reported price stands and the validator flags the row.
			if reported := perUnit(item.DiscountedPrice, line.Quantity); reported.Sub(derived).Abs().GreaterThan(oneCent) {
				alloc.PaidPrice = reported
			}
		}
	} else if hasPayment && payment.HasOrderVouchers() {
		alloc.Source = domain.SourceOrderVoucher
		alloc.VoucherPlatform = perUnit(payment.VoucherPlatform, totalUnits)
		alloc.VoucherSeller = perUnit(payment.VoucherSeller, totalUnits)
		alloc.PaidPrice = derivePaid(original, alloc.VoucherPlatform, alloc.VoucherSeller)
	} else {
		alloc.Source = domain.SourceListPrice
		alloc.VoucherPlatform = decimal.Zero
		alloc.VoucherSeller = decimal.Zero
		alloc.PaidPrice = original
	}

	if alloc.Source != domain.SourcePaymentDetail {
		discounted := line.PlatformDiscountedPrice
		if discounted.IsPositive() && discounted.LessThan(original) {
			stats.UnattributedDiscount++
		}
	}

	switch {
	case !line.LineShipping.IsZero():
		alloc.Shipping = perUnit(line.LineShipping, line.Quantity)
	case hasPayment && !payment.BuyerPaidShipping.IsZero():
		alloc.Shipping = perUnit(payment.BuyerPaidShipping, totalUnits)
	default:
		alloc.Shipping = decimal.Zero
	}
}
