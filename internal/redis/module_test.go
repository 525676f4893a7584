package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestNewClientDisabled(t *testing.T) {
	client, err := NewClient(fxtest.NewLifecycle(t), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, config.Config{Lock: config.LockConfig{RedisAddr: mr.Addr()}})
	require.NoError(t, err)
	require.NotNil(t, client)
	lc.RequireStart().RequireStop()
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(fxtest.NewLifecycle(t), config.Config{Lock: config.LockConfig{RedisAddr: addr}})
	assert.Error(t, err)
}
