package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CSVPaths struct {
	Order    string
	Customer string
	Product  string
	Variant  string
}

type csvRepository struct {
	paths CSVPaths
	log   *zap.Logger
}

func NewCSVRepository(paths CSVPaths, log *zap.Logger) domain.Repository {
	return &csvRepository{paths: paths, log: log}
}

func (r *csvRepository) Load(ctx context.Context) (domain.Tables, error) {
	tables := domain.Tables{Skipped: make(map[domain.Table]int)}

	orders, err := r.read(ctx, domain.TableOrder, r.paths.Order, true)
	if err != nil {
		return domain.Tables{}, err
	}
	for _, rec := range orders {
		row, err := parseOrderRow(rec)
		if err != nil {
			r.skip(&tables, domain.TableOrder, rec, err)
			continue
		}
		tables.Orders = append(tables.Orders, row)
	}

	customers, err := r.read(ctx, domain.TableCustomer, r.paths.Customer, true)
	if err != nil {
		return domain.Tables{}, err
	}
	for _, rec := range customers {
		row, err := parseCustomerRow(rec)
		if err != nil {
			r.skip(&tables, domain.TableCustomer, rec, err)
			continue
		}
		tables.Customers = append(tables.Customers, row)
	}

	products, err := r.read(ctx, domain.TableProduct, r.paths.Product, true)
	if err != nil {
		return domain.Tables{}, err
	}
	for _, rec := range products {
		row, err := parseProductRow(rec)
		if err != nil {
			r.skip(&tables, domain.TableProduct, rec, err)
			continue
		}
		tables.Products = append(tables.Products, row)
	}

	variants, err := r.read(ctx, domain.TableVariant, r.paths.Variant, false)
	if err != nil {
		return domain.Tables{}, err
	}
	for _, rec := range variants {
		row, err := parseVariantRow(rec)
		if err != nil {
			r.skip(&tables, domain.TableVariant, rec, err)
			continue
		}
		tables.Variants = append(tables.Variants, row)
	}

	return tables, nil
}

func (r *csvRepository) skip(t *domain.Tables, table domain.Table, rec record, err error) {
	t.Skipped[table]++
	r.log.Warn("skipping dimension row",
		zap.String("table", string(table)),
		zap.Int("line", rec.line),
		zap.Error(err),
	)
}

func (r *csvRepository) read(ctx context.Context, table domain.Table, path string, required bool) ([]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		if required {
			return nil, fmt.Errorf("%w: %s has no path", domain.ErrMissingDimension, table)
		}
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if required {
				return nil, fmt.Errorf("%w: %s (%s)", domain.ErrMissingDimension, table, path)
			}
			r.log.Warn("optional dimension table not found", zap.String("table", string(table)), zap.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	recs, err := readRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return recs, nil
}

type record struct {
	line   int
	fields map[string]string
}

func (r record) get(names ...string) string {
	for _, name := range names {
		if v, ok := r.fields[name]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// readRecords reads a headed CSV into name-addressed records. Unknown
// columns are kept and ignored by the row parsers.
func readRecords(rd io.Reader) ([]record, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var out []record
	line := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		rec := record{line: line, fields: make(map[string]string, len(header))}
		for i, name := range header {
			if i < len(fields) {
				rec.fields[name] = fields[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseOrderRow(rec record) (domain.OrderRow, error) {
	key, err := requiredInt(rec, "orders_key")
	if err != nil {
		return domain.OrderRow{}, err
	}
	id := rec.get("platform_order_id")
	if id == "" {
		return domain.OrderRow{}, fmt.Errorf("%w: platform_order_id is empty", domain.ErrInvalidRow)
	}
	count, err := optionalInt(rec, "total_item_count")
	if err != nil {
		return domain.OrderRow{}, err
	}
	platformKey, err := optionalInt(rec, "platform_key")
	if err != nil {
		return domain.OrderRow{}, err
	}
	return domain.OrderRow{
		OrdersKey:       key,
		PlatformOrderID: id,
		OrderDate:       ParseOrderDate(rec.get("order_date")),
		TotalItemCount:  count,
		PlatformKey:     platformKey,
	}, nil
}

func parseCustomerRow(rec record) (domain.CustomerRow, error) {
	key, err := requiredInt(rec, "customer_key")
	if err != nil {
		return domain.CustomerRow{}, err
	}
	id := rec.get("platform_customer_id")
	if id == "" {
		return domain.CustomerRow{}, fmt.Errorf("%w: platform_customer_id is empty", domain.ErrInvalidRow)
	}
	platformKey, err := optionalInt(rec, "platform_key")
	if err != nil {
		return domain.CustomerRow{}, err
	}
	return domain.CustomerRow{CustomerKey: key, PlatformCustomerID: id, PlatformKey: platformKey}, nil
}

func parseProductRow(rec record) (domain.ProductRow, error) {
	key, err := requiredInt(rec, "product_key")
	if err != nil {
		return domain.ProductRow{}, err
	}
	id := rec.get("product_item_id")
	if id == "" {
		return domain.ProductRow{}, fmt.Errorf("%w: product_item_id is empty", domain.ErrInvalidRow)
	}
	platformKey, err := optionalInt(rec, "platform_key")
	if err != nil {
		return domain.ProductRow{}, err
	}
	return domain.ProductRow{ProductKey: key, ProductItemID: id, PlatformKey: platformKey}, nil
}

func parseVariantRow(rec record) (domain.VariantRow, error) {
	key, err := requiredInt(rec, "product_variant_key", "variant_key")
	if err != nil {
		return domain.VariantRow{}, err
	}
	id := rec.get("platform_sku_id")
	if id == "" {
		return domain.VariantRow{}, fmt.Errorf("%w: platform_sku_id is empty", domain.ErrInvalidRow)
	}
	productKey, err := optionalInt(rec, "product_key")
	if err != nil {
		return domain.VariantRow{}, err
	}
	platformKey, err := optionalInt(rec, "platform_key")
	if err != nil {
		return domain.VariantRow{}, err
	}
	return domain.VariantRow{
		ProductVariantKey: key,
		PlatformSKUID:     id,
		ProductKey:        productKey,
		PlatformKey:       platformKey,
	}, nil
}

func requiredInt(rec record, names ...string) (int64, error) {
	raw := rec.get(names...)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is empty", domain.ErrInvalidRow, names[0])
	}
	v, err := parseInt(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", domain.ErrInvalidRow, names[0], raw)
	}
	return v, nil
}

func optionalInt(rec record, name string) (int64, error) {
	raw := rec.get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := parseInt(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", domain.ErrInvalidRow, name, raw)
	}
	return v, nil
}

// parseInt accepts integers written as floats ("12.0"), as dataframe
// exports often do.
func parseInt(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("not an integer: %s", raw)
	}
	return d.IntPart(), nil
}

var orderDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"2006/01/02",
}

// ParseOrderDate returns the zero time when the value cannot be parsed.
func ParseOrderDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
