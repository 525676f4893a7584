package domain

import (
	"testing"

	"github.com/railzwaylabs/orderrecon/internal/platform"
	"github.com/stretchr/testify/assert"
)

func TestNewItemKey(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		want    string
	}{
		{"empty model", "", "0"},
		{"blank model", "  ", "0"},
		{"zero model", "0", "0"},
		{"explicit model", " 222 ", "222"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewItemKey(platform.Shopee, " 2301ABC ", "111", tt.modelID)
			assert.Equal(t, tt.want, key.ModelID)
			assert.Equal(t, "2301ABC", key.OrderID)
		})
	}

	assert.Equal(t,
		NewItemKey(platform.Shopee, "A", "1", ""),
		NewItemKey(platform.Shopee, "A", "1", "0"),
	)
	assert.NotEqual(t,
		NewItemKey(platform.Shopee, "A", "1", "0"),
		NewItemKey(platform.Lazada, "A", "1", "0"),
	)
}
