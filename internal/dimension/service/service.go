package service

import (
	"context"

	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	"github.com/railzwaylabs/orderrecon/internal/dimension/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log  *zap.Logger
	repo domain.Repository
}

type ServiceParam struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
	DB  *gorm.DB `optional:"true"`
}

func NewService(p ServiceParam) *Service {
	var repo domain.Repository
	if p.Cfg.Dimensions.Source == config.SourceDatabase && p.DB != nil {
		repo = repository.NewGormRepository(p.DB)
	} else {
		dims := p.Cfg.Dimensions
		repo = repository.NewCSVRepository(repository.CSVPaths{
			Order:    dims.Path(dims.Order),
			Customer: dims.Path(dims.Customer),
			Product:  dims.Path(dims.Product),
			Variant:  dims.Path(dims.Variant),
		}, p.Log.Named("dimension.repository"))
	}
	return New(repo, p.Log)
}

func New(repo domain.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log.Named("dimension.service"),
		repo: repo,
	}
}

// Build loads the dimension tables and indexes them. Missing or empty
// required tables abort the run.
func (s *Service) Build(ctx context.Context) (*domain.Index, error) {
	tables, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := domain.NewIndex(tables)
	if err != nil {
		return nil, err
	}

	stats := idx.Stats()
	s.log.Info("dimension lookups built",
		zap.Int("orders", stats.Orders),
		zap.Int("customers", stats.Customers),
		zap.Int("products", stats.Products),
		zap.Int("variants", stats.Variants),
		zap.Any("duplicates", stats.Duplicates),
		zap.Any("skipped_rows", tables.Skipped),
	)
	if len(tables.Variants) == 0 {
		s.log.Warn("variant dimension is empty; product_variant_key stays null")
	}
	return idx, nil
}
