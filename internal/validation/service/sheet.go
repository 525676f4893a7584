package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/railzwaylabs/orderrecon/internal/validation/domain"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "validation"

// ReportSheet renders a report as an extra workbook sheet.
type ReportSheet struct {
	Report domain.Report
}

func (s ReportSheet) WriteSheet(f *excelize.File) error {
	if _, err := f.NewSheet(reportSheet); err != nil {
		return err
	}
	t := s.Report.Tally
	rows := [][]interface{}{
		{"metric", "value"},
		{"tolerance", s.Report.Tolerance.StringFixed(2)},
		{"rows", t.Rows},
		{"exact", t.Exact},
		{"within_tolerance", t.WithinTolerance},
		{"discrepancy", t.Discrepancy},
		{"overshoot", t.Overshoot},
		{"negative_paid", t.NegativePaid},
		{"total_discrepancy", t.TotalDiscrepancy.StringFixed(2)},
		{},
		{"order_item_key", "orders_key", "class", "overshoot", "negative_paid", "paid_price", "expected_paid_price", "diff"},
	}
	for _, fd := range s.Report.Findings {
		rows = append(rows, []interface{}{
			fd.OrderItemKey,
			fd.OrdersKey,
			string(fd.Class),
			fd.Overshoot,
			fd.NegativePaid,
			fd.Paid.StringFixed(2),
			fd.Expected.StringFixed(2),
			fd.Diff.StringFixed(2),
		})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("write validation sheet: %w", err)
		}
	}
	return nil
}

// WriteJSON stores the report next to the fact table.
func WriteJSON(path string, report domain.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
