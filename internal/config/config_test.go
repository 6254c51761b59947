package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToDefault(t *testing.T) {
	m := Map{}
	assert.Equal(t, "default", m.Get("app_name", "default"))
}

func TestMustGetErrorsOnMissingKey(t *testing.T) {
	m := Map{}
	_, err := m.MustGet("okex_ws_url")
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "okex_ws_url", cfgErr.Key)
}

func TestIntAndMillis(t *testing.T) {
	m := Map{"tokio.worker_threads": "8", "okex_heartbeat_millis": "25000"}

	n, err := m.Int("tokio.worker_threads", 4)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	d, err := m.MustMillis("okex_heartbeat_millis")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Second, d)
}

func TestCSVTrimsAndDropsEmpty(t *testing.T) {
	m := Map{"deribit_products_to_subscribe": "book.BTC-10MAY24-66000-C.none.20.100ms, book.ETH-10MAY24-3000-P.none.20.100ms ,"}
	got := m.CSV("deribit_products_to_subscribe")
	assert.Equal(t, []string{
		"book.BTC-10MAY24-66000-C.none.20.100ms",
		"book.ETH-10MAY24-3000-P.none.20.100ms",
	}, got)
}

func TestCSVEmptyReturnsNil(t *testing.T) {
	m := Map{}
	assert.Nil(t, m.CSV("okex_products_to_subscribe"))
}
