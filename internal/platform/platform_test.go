package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse(" Shopee ")
	require.NoError(t, err)
	assert.Equal(t, Shopee, p)
	assert.Equal(t, int64(2), p.Key())

	_, err = Parse("tokopedia")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestParseList(t *testing.T) {
	got, err := ParseList([]string{"lazada,shopee", "lazada"})
	require.NoError(t, err)
	assert.Equal(t, []Platform{Lazada, Shopee}, got)

	p, ok := FromKey(1)
	assert.True(t, ok)
	assert.Equal(t, Lazada, p)

	_, ok = FromKey(9)
	assert.False(t, ok)
}
