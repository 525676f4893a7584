package repository

import (
	"context"

	"github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 500

type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Name() string { return "database" }

// Write replaces the fact table contents in one transaction.
func (s *GormSink) Write(ctx context.Context, rows []domain.FactOrderLine) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM fact_orders`).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

func (s *GormSink) List(ctx context.Context) ([]domain.FactOrderLine, error) {
	var rows []domain.FactOrderLine
	err := s.db.WithContext(ctx).Order("order_item_key ASC").Find(&rows).Error
	return rows, err
}
