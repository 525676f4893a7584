package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeStaged(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	src := Sources{
		LazadaOrders:     writeStaged(t, dir, "lazada_orders_raw.json", `[{"order_id":1,"created_at":"2024-01-02 10:00:00 +0800","customer_first_name":"Ana","address_shipping":{"phone":"639171234567"}}]`),
		LazadaOrderItems: writeStaged(t, dir, "lazada_items.json", `[{"order_id":1,"order_items":[{"item_id":5,"sku_id":50,"item_price":"10"}]}]`),
		ShopeeOrders:     writeStaged(t, dir, "shopee_orders_raw.json", "{\"order_sn\":\"S1\",\"buyer_user_id\":9,\"create_time\":1704153600,\"item_list\":[{\"item_id\":7}]}\nnot json\n"),
		ShopeePayments: []string{
			writeStaged(t, dir, "shopee_paymentdetail_raw.json", `[{"order_sn":"S1","order_income":{"voucher_from_shopee":5}}]`),
			filepath.Join(dir, "shopee_paymentdetail_2_raw.json"),
		},
	}

	batch, err := NewLoader(src, zap.NewNop()).Load(context.Background(), []platform.Platform{platform.Lazada, platform.Shopee})
	require.NoError(t, err)

	assert.Len(t, batch.Orders, 2)
	assert.Equal(t, 1, batch.OrderCount(platform.Lazada))
	assert.Equal(t, 1, batch.OrderCount(platform.Shopee))
	assert.Len(t, batch.Payments, 2)
	assert.Equal(t, 1, batch.Malformed())

	var missing int
	for _, f := range batch.Files {
		if f.Missing {
			missing++
		}
	}
	assert.Equal(t, 1, missing)
}

func TestLoaderPlatformFilterAndMissingInput(t *testing.T) {
	dir := t.TempDir()
	src := Sources{
		ShopeeOrders: writeStaged(t, dir, "shopee_orders_raw.json", `[]`),
		LazadaOrders: filepath.Join(dir, "absent.json"),
	}
	loader := NewLoader(src, zap.NewNop())

	batch, err := loader.Load(context.Background(), []platform.Platform{platform.Shopee})
	require.NoError(t, err)
	assert.Empty(t, batch.Orders)

	_, err = loader.Load(context.Background(), []platform.Platform{platform.Lazada})
	assert.ErrorIs(t, err, ErrMissingInput)
}
