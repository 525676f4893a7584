package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"go.uber.org/zap"
)

var ErrMissingInput = errors.New("missing_input")

type Sources struct {
	LazadaOrders     string
	LazadaOrderItems string
	ShopeeOrders     string
	ShopeeOrderItems string
	ShopeePayments   []string
	// Location localizes unix timestamps. Defaults to UTC.
	Location *time.Location
}

// Paths lists every configured input file.
func (s Sources) Paths() []string {
	var out []string
	for _, p := range append([]string{s.LazadaOrders, s.LazadaOrderItems, s.ShopeeOrders, s.ShopeeOrderItems}, s.ShopeePayments...) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type FileStat struct {
	Platform  platform.Platform `json:"platform"`
	Path      string            `json:"path"`
	Records   int               `json:"records"`
	Malformed int               `json:"malformed"`
	Missing   bool              `json:"missing,omitempty"`
}

// Batch is everything staged for one run.
type Batch struct {
	Orders   []allocdomain.RawOrder
	Payments []paymentdomain.OrderPayment
	Files    []FileStat
}

func (b Batch) Malformed() int {
	var n int
	for _, f := range b.Files {
		n += f.Malformed
	}
	return n
}

func (b Batch) OrderCount(p platform.Platform) int {
	var n int
	for _, o := range b.Orders {
		if o.Platform == p {
			n++
		}
	}
	return n
}

type Loader struct {
	src Sources
	log *zap.Logger
}

func NewLoader(src Sources, log *zap.Logger) *Loader {
	if src.Location == nil {
		src.Location = time.UTC
	}
	return &Loader{src: src, log: log.Named("staging.loader")}
}

func (l *Loader) Sources() Sources {
	return l.src
}

// Load reads the staged exports of the requested platforms. A missing order
// export aborts the load; missing payment exports only mean every line takes
// the fallback path.
func (l *Loader) Load(ctx context.Context, platforms []platform.Platform) (Batch, error) {
	var batch Batch
	for _, p := range platforms {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		var err error
		switch p {
		case platform.Lazada:
			err = l.loadLazada(&batch)
		case platform.Shopee:
			err = l.loadShopee(&batch)
		default:
			err = fmt.Errorf("%w: %s", platform.ErrUnknownPlatform, p)
		}
		if err != nil {
			return Batch{}, err
		}
	}
	return batch, nil
}

func (l *Loader) loadLazada(batch *Batch) error {
	orders, err := readRequired[lazadaOrder](l, batch, platform.Lazada, l.src.LazadaOrders)
	if err != nil {
		return err
	}
	items, err := readRequired[lazadaOrderItems](l, batch, platform.Lazada, l.src.LazadaOrderItems)
	if err != nil {
		return err
	}

	res := buildLazada(orders, items)
	if res.orphanItems > 0 {
		l.log.Warn("lazada item rows without an order header", zap.Int("rows", res.orphanItems))
	}
	batch.Orders = append(batch.Orders, res.orders...)
	batch.Payments = append(batch.Payments, res.payments...)
	l.log.Info("lazada staged", zap.Int("orders", len(res.orders)), zap.Int("payments", len(res.payments)))
	return nil
}

func (l *Loader) loadShopee(batch *Batch) error {
	orders, err := readRequired[shopeeOrder](l, batch, platform.Shopee, l.src.ShopeeOrders)
	if err != nil {
		return err
	}
	var items []shopeeOrder
	if l.src.ShopeeOrderItems != "" {
		items, err = readOptional[shopeeOrder](l, batch, platform.Shopee, l.src.ShopeeOrderItems)
		if err != nil {
			return err
		}
	}

	var payments []shopeePayment
	for _, path := range l.src.ShopeePayments {
		recs, err := readOptional[shopeePayment](l, batch, platform.Shopee, path)
		if err != nil {
			return err
		}
		payments = append(payments, recs...)
	}

	staged := buildShopeeOrders(orders, items, l.src.Location)
	batch.Orders = append(batch.Orders, staged...)
	batch.Payments = append(batch.Payments, buildShopeePayments(payments)...)
	l.log.Info("shopee staged", zap.Int("orders", len(staged)), zap.Int("payments", len(payments)))
	return nil
}

func readRequired[T any](l *Loader, batch *Batch, p platform.Platform, path string) ([]T, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no %s export configured", ErrMissingInput, p)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, err
	}
	return read[T](l, batch, p, path)
}

func readOptional[T any](l *Loader, batch *Batch, p platform.Platform, path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.log.Warn("optional export not found", zap.String("platform", p.String()), zap.String("path", path))
			batch.Files = append(batch.Files, FileStat{Platform: p, Path: path, Missing: true})
			return nil, nil
		}
		return nil, err
	}
	return read[T](l, batch, p, path)
}

func read[T any](l *Loader, batch *Batch, p platform.Platform, path string) ([]T, error) {
	res, err := ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if res.Malformed > 0 {
		l.log.Warn("skipped malformed records",
			zap.String("path", path),
			zap.Int("malformed", res.Malformed),
		)
	}
	batch.Files = append(batch.Files, FileStat{
		Platform:  p,
		Path:      path,
		Records:   len(res.Records),
		Malformed: res.Malformed,
	})
	return res.Records, nil
}
