package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	"github.com/xuri/excelize/v2"
)

const factSheet = "fact_orders"

// SheetWriter adds a sheet to the workbook after the fact rows are written.
type SheetWriter interface {
	WriteSheet(f *excelize.File) error
}

type XLSXSink struct {
	path   string
	extras []SheetWriter
}

func NewXLSXSink(path string, extras ...SheetWriter) *XLSXSink {
	return &XLSXSink{path: path, extras: extras}
}

func (s *XLSXSink) Name() string { return "xlsx" }

// With returns a sink that also writes the given sheets.
func (s *XLSXSink) With(extras ...SheetWriter) *XLSXSink {
	return &XLSXSink{path: s.path, extras: append(append([]SheetWriter{}, s.extras...), extras...)}
}

func (s *XLSXSink) Write(ctx context.Context, rows []domain.FactOrderLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", factSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(factSheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(domain.Columns))
	for i, c := range domain.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxValues(row)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	for _, extra := range s.extras {
		if err := extra.WriteSheet(f); err != nil {
			return err
		}
	}
	return f.SaveAs(s.path)
}

func xlsxValues(row domain.FactOrderLine) []interface{} {
	var variant interface{}
	if row.ProductVariantKey != nil {
		variant = *row.ProductVariantKey
	}
	return []interface{}{
		row.OrderItemKey,
		row.OrdersKey,
		row.ProductKey,
		variant,
		row.TimeKey,
		row.CustomerKey,
		row.PlatformKey,
		row.ItemQuantity,
		row.PaidPrice.InexactFloat64(),
		row.OriginalUnitPrice.InexactFloat64(),
		row.VoucherPlatformAmount.InexactFloat64(),
		row.VoucherSellerAmount.InexactFloat64(),
		row.ShippingFeePaidByBuyer.InexactFloat64(),
	}
}
