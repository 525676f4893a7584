package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/orderrecon/internal/runlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNoRuns = errors.New("no_runs_recorded")

// Recorder appends run records to recon_runs. Without a database it only
// logs.
type Recorder struct {
	db   *gorm.DB
	node *snowflake.Node
	log  *zap.Logger
}

type ServiceParam struct {
	fx.In

	Log  *zap.Logger
	Node *snowflake.Node
	DB   *gorm.DB `optional:"true"`
}

func NewRecorder(p ServiceParam) *Recorder {
	return &Recorder{
		db:   p.DB,
		node: p.Node,
		log:  p.Log.Named("runlog.service"),
	}
}

func (r *Recorder) Enabled() bool {
	return r.db != nil
}

// Record assigns an id to run when it has none and stores it.
func (r *Recorder) Record(ctx context.Context, run *domain.Run) error {
	if run.ID == 0 && r.node != nil {
		run.ID = r.node.Generate()
	}
	r.log.Info("run recorded",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("rows", run.Rows),
		zap.Duration("duration", run.Duration()),
	)
	if r.db == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (r *Recorder) Latest(ctx context.Context) (*domain.Run, error) {
	if r.db == nil {
		return nil, ErrNoRuns
	}
	var run domain.Run
	err := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestSucceeded returns the most recent successful run.
func (r *Recorder) LatestSucceeded(ctx context.Context) (*domain.Run, error) {
	if r.db == nil {
		return nil, ErrNoRuns
	}
	var run domain.Run
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusSucceeded).
		Order("started_at DESC").Order("id DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
