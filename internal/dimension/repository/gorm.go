package repository

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository reads the dimension tables from the warehouse the
// harmonization stage writes to.
func NewGormRepository(db *gorm.DB) domain.Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Load(ctx context.Context) (domain.Tables, error) {
	tables := domain.Tables{Skipped: make(map[domain.Table]int)}
	db := r.db.WithContext(ctx)

	if err := r.requireTable(string(domain.TableOrder)); err != nil {
		return domain.Tables{}, err
	}
	if err := db.Raw(
		`SELECT orders_key, platform_order_id, order_date,
		        COALESCE(total_item_count, 0) AS total_item_count,
		        COALESCE(platform_key, 0) AS platform_key
		 FROM dim_order
		 ORDER BY orders_key`,
	).Scan(&tables.Orders).Error; err != nil {
		return domain.Tables{}, fmt.Errorf("load dim_order: %w", err)
	}

	if err := r.requireTable(string(domain.TableCustomer)); err != nil {
		return domain.Tables{}, err
	}
	if err := db.Raw(
		`SELECT customer_key, platform_customer_id, COALESCE(platform_key, 0) AS platform_key
		 FROM dim_customer
		 ORDER BY customer_key`,
	).Scan(&tables.Customers).Error; err != nil {
		return domain.Tables{}, fmt.Errorf("load dim_customer: %w", err)
	}

	if err := r.requireTable(string(domain.TableProduct)); err != nil {
		return domain.Tables{}, err
	}
	if err := db.Raw(
		`SELECT product_key, product_item_id, COALESCE(platform_key, 0) AS platform_key
		 FROM dim_product
		 ORDER BY product_key`,
	).Scan(&tables.Products).Error; err != nil {
		return domain.Tables{}, fmt.Errorf("load dim_product: %w", err)
	}

	if !r.db.Migrator().HasTable(string(domain.TableVariant)) {
		return tables, nil
	}
	if err := db.Raw(
		`SELECT product_variant_key, platform_sku_id,
		        COALESCE(product_key, 0) AS product_key,
		        COALESCE(platform_key, 0) AS platform_key
		 FROM dim_product_variant
		 ORDER BY product_variant_key`,
	).Scan(&tables.Variants).Error; err != nil {
		return domain.Tables{}, fmt.Errorf("load dim_product_variant: %w", err)
	}

	return tables, nil
}

func (r *gormRepository) requireTable(name string) error {
	if !r.db.Migrator().HasTable(name) {
		return fmt.Errorf("%w: %s", domain.ErrMissingDimension, name)
	}
	return nil
}
