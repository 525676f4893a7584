package harmonize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/goccy/go-json"
	"github.com/railzwaylabs/orderrecon/internal/allocation"
	allocdomain "github.com/railzwaylabs/orderrecon/internal/allocation/domain"
	"github.com/railzwaylabs/orderrecon/internal/clock"
	"github.com/railzwaylabs/orderrecon/internal/config"
	dimensionservice "github.com/railzwaylabs/orderrecon/internal/dimension/service"
	factservice "github.com/railzwaylabs/orderrecon/internal/factorder/service"
	"github.com/railzwaylabs/orderrecon/internal/metrics"
	"github.com/railzwaylabs/orderrecon/internal/paymentdetail"
	paymentdomain "github.com/railzwaylabs/orderrecon/internal/paymentdetail/domain"
	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/railzwaylabs/orderrecon/internal/runlock"
	runlogdomain "github.com/railzwaylabs/orderrecon/internal/runlog/domain"
	runlogservice "github.com/railzwaylabs/orderrecon/internal/runlog/service"
	"github.com/railzwaylabs/orderrecon/internal/staging"
	validationdomain "github.com/railzwaylabs/orderrecon/internal/validation/domain"
	validationservice "github.com/railzwaylabs/orderrecon/internal/validation/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ServiceParam struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Node       *snowflake.Node
	Loader     *staging.Loader
	Dimensions *dimensionservice.Service
	Payments   paymentdetail.Factory
	Allocators allocation.Factory
	Validator  *validationservice.Validator
	Writer     *factservice.Writer
	Recorder   *runlogservice.Recorder
	Locker     runlock.Locker
	Metrics    *metrics.Registry
	Tracer     trace.TracerProvider `optional:"true"`
}

// Service runs one reconciliation end to end.
type Service struct {
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	node       *snowflake.Node
	loader     *staging.Loader
	dimensions *dimensionservice.Service
	payments   paymentdetail.Factory
	allocators allocation.Factory
	validator  *validationservice.Validator
	writer     *factservice.Writer
	recorder   *runlogservice.Recorder
	locker     runlock.Locker
	metrics    *metrics.Registry
	tracer     trace.Tracer
}

func NewService(p ServiceParam) *Service {
	tp := p.Tracer
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Service{
		cfg:        p.Cfg,
		log:        p.Log.Named("harmonize.service"),
		clock:      p.Clock,
		node:       p.Node,
		loader:     p.Loader,
		dimensions: p.Dimensions,
		payments:   p.Payments,
		allocators: p.Allocators,
		validator:  p.Validator,
		writer:     p.Writer,
		recorder:   p.Recorder,
		locker:     p.Locker,
		metrics:    p.Metrics,
		tracer:     tp.Tracer("github.com/railzwaylabs/orderrecon/internal/harmonize"),
	}
}

// Summary is what a run reports back to the caller.
type Summary struct {
	RunID      snowflake.ID            `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Platforms  []platform.Platform     `json:"platforms"`
	Inputs     []staging.FileStat      `json:"inputs"`
	Payments   paymentdomain.Stats     `json:"payments"`
	Allocation allocdomain.Stats       `json:"allocation"`
	Drops      allocdomain.DropTally   `json:"drops"`
	Facts      factservice.Summary     `json:"facts"`
	Validation validationdomain.Report `json:"validation"`
	Checksum   string                  `json:"checksum"`
	Sinks      []string                `json:"sinks"`
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Run stages the exports, allocates, writes the fact table and records the
// outcome. Only one run holds the output at a time.
func (s *Service) Run(ctx context.Context) (summary Summary, err error) {
	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if rerr := release(context.Background()); rerr != nil {
			s.log.Warn("release run lock", zap.Error(rerr))
		}
	}()

	summary.RunID = s.node.Generate()
	summary.StartedAt = s.clock.Now(ctx)
	log := s.log.With(zap.String("run_id", summary.RunID.String()))

	ctx, span := s.tracer.Start(ctx, "reconcile.run",
		trace.WithAttributes(attribute.String("run_id", summary.RunID.String())),
	)
	defer func() {
		summary.FinishedAt = s.clock.Now(ctx)
		s.finish(context.WithoutCancel(ctx), log, summary, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("rows", summary.Facts.Rows),
				attribute.String("checksum", summary.Checksum),
			)
		}
		span.End()
	}()

	summary.Platforms, err = s.cfg.Platforms()
	if err != nil {
		return summary, err
	}

	stageCtx, stageSpan := s.tracer.Start(ctx, "reconcile.stage")
	batch, err := s.loader.Load(stageCtx, summary.Platforms)
	stageSpan.End()
	if err != nil {
		return summary, fmt.Errorf("stage exports: %w", err)
	}
	summary.Inputs = batch.Files
	log.Info("exports staged",
		zap.Int("orders", len(batch.Orders)),
		zap.Int("payments", len(batch.Payments)),
		zap.Int("malformed", batch.Malformed()),
	)

	dimCtx, dimSpan := s.tracer.Start(ctx, "reconcile.dimensions")
	idx, err := s.dimensions.Build(dimCtx)
	dimSpan.End()
	if err != nil {
		return summary, fmt.Errorf("build dimensions: %w", err)
	}

	matcher := s.payments(batch.Payments)
	summary.Payments = matcher.Stats()

	allocator := s.allocators(allocdomain.Context{Dimensions: idx, Payments: matcher})
	allocCtx, allocSpan := s.tracer.Start(ctx, "reconcile.allocate",
		trace.WithAttributes(
			attribute.Int("orders", len(batch.Orders)),
			attribute.Int("workers", s.cfg.Reconcile.Workers),
		),
	)
	result, err := allocator.AllocateAll(allocCtx, batch.Orders, s.cfg.Reconcile.Workers)
	allocSpan.End()
	if err != nil {
		return summary, fmt.Errorf("allocate: %w", err)
	}
	summary.Allocation = result.Stats
	summary.Drops = result.Drops
	for _, reason := range result.Drops.Reasons() {
		log.Warn("lines dropped", zap.String("reason", string(reason)), zap.Int64("lines", result.Drops[reason]))
	}

	rows := factservice.Assemble(result.Lines)
	summary.Checksum = factservice.Checksum(rows)
	summary.Facts = factservice.Summarize(rows)
	summary.Validation = s.validator.Validate(rows, idx)

	writeCtx, writeSpan := s.tracer.Start(ctx, "reconcile.write")
	summary.Sinks, err = s.writer.Write(writeCtx, rows, validationservice.ReportSheet{Report: summary.Validation})
	writeSpan.End()
	if err != nil {
		return summary, err
	}

	if path := s.cfg.Output.ReportJSON; path != "" {
		summary.FinishedAt = s.clock.Now(ctx)
		if err = writeJSON(path, summary); err != nil {
			return summary, fmt.Errorf("write run report: %w", err)
		}
	}
	return summary, nil
}

func (s *Service) finish(ctx context.Context, log *zap.Logger, summary Summary, runErr error) {
	status := runlogdomain.StatusSucceeded
	if runErr != nil {
		status = runlogdomain.StatusFailed
	}

	run := &runlogdomain.Run{
		ID:            summary.RunID,
		Status:        status,
		Platforms:     joinPlatforms(summary.Platforms),
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
		Orders:        int(summary.Allocation.Orders),
		Rows:          summary.Facts.Rows,
		DroppedUnits:  int(summary.Allocation.DroppedUnits),
		Discrepancies: summary.Validation.Tally.Discrepancy,
		Overshoots:    summary.Validation.Tally.Overshoot,
		Checksum:      summary.Checksum,
		DropTally:     dropTally(summary.Drops),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.recorder.Record(ctx, run); err != nil {
		log.Error("record run", zap.Error(err))
	}

	s.observe(log, summary, runErr == nil)

	if runErr != nil {
		log.Error("reconciliation failed", zap.Error(runErr), zap.Duration("duration", summary.Duration()))
		return
	}
	log.Info("reconciliation finished",
		zap.Int("rows", summary.Facts.Rows),
		zap.Int64("total_items", summary.Facts.TotalItems),
		zap.String("total_revenue", summary.Facts.TotalRevenue.StringFixed(2)),
		zap.String("avg_unit_price", summary.Facts.AvgUnitPrice.StringFixed(2)),
		zap.Int64("min_time_key", summary.Facts.MinTimeKey),
		zap.Int64("max_time_key", summary.Facts.MaxTimeKey),
		zap.String("variant_coverage", summary.Facts.VariantCoverage.String()),
		zap.Int64("dropped_units", summary.Allocation.DroppedUnits),
		zap.Strings("sinks", summary.Sinks),
		zap.String("checksum", summary.Checksum),
		zap.Duration("duration", summary.Duration()),
	)
}

func dropTally(drops allocdomain.DropTally) datatypes.JSONMap {
	if len(drops) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(drops))
	for reason, n := range drops {
		out[string(reason)] = n
	}
	return out
}

func (s *Service) observe(log *zap.Logger, summary Summary, ok bool) {
	stats := metrics.RunStats{
		Succeeded:     ok,
		Duration:      summary.Duration(),
		FinishedAt:    summary.FinishedAt,
		FactRows:      summary.Facts.Rows,
		LinesBySource: map[string]int{},
		DroppedLines:  map[string]int{},
		Discrepancies: summary.Validation.Tally.Discrepancy,
		Overshoots:    summary.Validation.Tally.Overshoot,
		NegativePaid:  summary.Validation.Tally.NegativePaid,
	}
	for source, n := range summary.Allocation.BySource {
		stats.LinesBySource[string(source)] = int(n)
	}
	for reason, n := range summary.Drops {
		stats.DroppedLines[string(reason)] = int(n)
	}
	s.metrics.Observe(stats)

	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			log.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
}

func joinPlatforms(ps []platform.Platform) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// IsLocked reports whether err means another run holds the output.
func IsLocked(err error) bool {
	return errors.Is(err, runlock.ErrLocked)
}
