package service

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	"github.com/railzwaylabs/orderrecon/internal/factorder/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Writer fans the fact table out to every configured sink.
type Writer struct {
	log  *zap.Logger
	csv  *repository.CSVSink
	xlsx *repository.XLSXSink
	db   *repository.GormSink
}

type WriterParam struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
	DB  *gorm.DB `optional:"true"`
}

func NewWriter(p WriterParam) *Writer {
	w := &Writer{
		log: p.Log.Named("factorder.writer"),
		csv: repository.NewCSVSink(p.Cfg.Output.FactCSV),
	}
	if p.Cfg.Output.XLSX != "" {
		w.xlsx = repository.NewXLSXSink(p.Cfg.Output.XLSX)
	}
	if p.Cfg.Output.Database && p.DB != nil {
		w.db = repository.NewGormSink(p.DB)
	}
	return w
}

// Write replaces the output of every sink. extras are added as sheets when
// the XLSX sink is enabled.
func (w *Writer) Write(ctx context.Context, rows []domain.FactOrderLine, extras ...repository.SheetWriter) ([]string, error) {
	sinks := []domain.Sink{w.csv}
	if w.xlsx != nil {
		sinks = append(sinks, w.xlsx.With(extras...))
	}
	if w.db != nil {
		sinks = append(sinks, w.db)
	}

	written := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		if err := sink.Write(ctx, rows); err != nil {
			return written, fmt.Errorf("write %s sink: %w", sink.Name(), err)
		}
		written = append(written, sink.Name())
		w.log.Info("fact table written", zap.String("sink", sink.Name()), zap.Int("rows", len(rows)))
	}
	return written, nil
}
