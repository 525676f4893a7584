package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/orderrecon/internal/dimension/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormRepositoryLoad(t *testing.T) {
	db := openTestDB(t)

	orderDate := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Table("dim_order").AutoMigrate(&domain.OrderRow{}))
	require.NoError(t, db.Table("dim_order").Create(&domain.OrderRow{
		OrdersKey: 1, PlatformOrderID: "S-1", OrderDate: orderDate, TotalItemCount: 3, PlatformKey: 2,
	}).Error)
	require.NoError(t, db.Table("dim_customer").AutoMigrate(&domain.CustomerRow{}))
	require.NoError(t, db.Table("dim_customer").Create(&domain.CustomerRow{
		CustomerKey: 7, PlatformCustomerID: "998877", PlatformKey: 2,
	}).Error)
	require.NoError(t, db.Table("dim_product").AutoMigrate(&domain.ProductRow{}))
	require.NoError(t, db.Table("dim_product").Create(&domain.ProductRow{
		ProductKey: 9, ProductItemID: "111", PlatformKey: 2,
	}).Error)

	tables, err := NewGormRepository(db).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, tables.Orders, 1)
	assert.Equal(t, "S-1", tables.Orders[0].PlatformOrderID)
	assert.Equal(t, int64(3), tables.Orders[0].TotalItemCount)
	assert.True(t, orderDate.Equal(tables.Orders[0].OrderDate))
	require.Len(t, tables.Customers, 1)
	require.Len(t, tables.Products, 1)
	assert.Empty(t, tables.Variants)
}

func TestGormRepositoryMissingTable(t *testing.T) {
	db := openTestDB(t)

	_, err := NewGormRepository(db).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingDimension)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return db
}
