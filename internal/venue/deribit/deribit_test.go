package deribit

import (
	"testing"

	"crossspread-arb/internal/book"
	"crossspread-arb/internal/bus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*Adapter, *bus.Receiver[book.OrderBookUpdate]) {
	t.Helper()
	b := bus.New[book.OrderBookUpdate]()
	receiver := b.Receiver()
	adapter := New(b.Sender(), []string{"book.BTC-10MAY24-66000-C.none.20.100ms"})
	return adapter, receiver
}

func TestSubscribeResponseMarksSubscribed(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	// Simulate OnConnect's bookkeeping without a real writer: assign id 1.
	adapter.pending[1] = []string{"book.BTC-10MAY24-66000-C.none.20.100ms"}
	adapter.subs.MarkInFlight([]string{"book.BTC-10MAY24-66000-C.none.20.100ms"})

	msg := `{"jsonrpc":"2.0","id":1,"result":["book.BTC-10MAY24-66000-C.none.20.100ms"]}`
	err := adapter.OnMessage([]byte(msg), nil)
	require.NoError(t, err)

	assert.Empty(t, adapter.subs.PendingProducts())
}

func TestPartiallyAckedSubscribeLeavesUnackedChannelInFlight(t *testing.T) {
	b := bus.New[book.OrderBookUpdate]()
	channels := []string{
		"book.BTC-10MAY24-66000-C.none.20.100ms",
		"book.BTC-10MAY24-70000-C.none.20.100ms",
	}
	adapter := New(b.Sender(), channels)

	adapter.pending[1] = channels
	adapter.subs.MarkInFlight(channels)

	// Only the first channel is acknowledged in result.
	msg := `{"jsonrpc":"2.0","id":1,"result":["book.BTC-10MAY24-66000-C.none.20.100ms"]}`
	err := adapter.OnMessage([]byte(msg), nil)
	require.NoError(t, err)

	pending := adapter.subs.PendingProducts()
	assert.NotContains(t, pending, "book.BTC-10MAY24-66000-C.none.20.100ms")
	// The unacknowledged channel is neither subscribed nor pending (it
	// remains marked in flight rather than being silently treated as live).
	assert.NotContains(t, pending, "book.BTC-10MAY24-70000-C.none.20.100ms")
}

func TestOnMessageNormalizesSnapshotPush(t *testing.T) {
	adapter, receiver := newTestAdapter(t)

	msg := `{"method":"subscription","params":{"channel":"book.BTC-10MAY24-66000-C.none.20.100ms","data":{"type":"snapshot","bids":[[0.018,5400]],"asks":[[0.015,1000]]}}}`
	err := adapter.OnMessage([]byte(msg), nil)
	require.NoError(t, err)

	select {
	case upd := <-receiver.C():
		require.Len(t, upd.Bids, 1)
		require.Len(t, upd.Asks, 1)
		assert.Equal(t, "0.018", upd.Bids[0].Price.String())
		assert.Equal(t, "0.015", upd.Asks[0].Price.String())
	default:
		t.Fatal("expected an order book update on the bus")
	}
}

func TestOnMessageNormalizesChangePushWithActionTriples(t *testing.T) {
	adapter, receiver := newTestAdapter(t)

	msg := `{"method":"subscription","params":{"channel":"book.BTC-10MAY24-66000-C.none.20.100ms","data":{"type":"change","bids":[["new",0.018,5400]],"asks":[["delete",0.015,0]]}}}`
	err := adapter.OnMessage([]byte(msg), nil)
	require.NoError(t, err)

	select {
	case upd := <-receiver.C():
		assert.Equal(t, "0.018", upd.Bids[0].Price.String())
		assert.Equal(t, "0.015", upd.Asks[0].Price.String())
		assert.True(t, upd.Asks[0].Size.IsZero())
	default:
		t.Fatal("expected an order book update on the bus")
	}
}

func TestOnMessageDropsUnparseableInstrumentIDNeverPanics(t *testing.T) {
	adapter, receiver := newTestAdapter(t)

	msg := `{"method":"subscription","params":{"channel":"book.BTC-10XXX24-66000-C.none.20.100ms","data":{"type":"snapshot","bids":[],"asks":[]}}}`
	assert.NotPanics(t, func() {
		err := adapter.OnMessage([]byte(msg), nil)
		assert.NoError(t, err)
	})

	select {
	case <-receiver.C():
		t.Fatal("malformed instrument id must not produce an update")
	default:
	}
}

func TestRPCErrorSurfaces(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	msg := `{"jsonrpc":"2.0","id":1,"error":{"code":10009,"message":"not_enough_funds"}}`
	err := adapter.OnMessage([]byte(msg), nil)
	assert.Error(t, err)
}

func TestNumericPriceNeverRoutesThroughFloat(t *testing.T) {
	adapter, receiver := newTestAdapter(t)
	msg := `{"method":"subscription","params":{"channel":"book.BTC-10MAY24-66000-C.none.20.100ms","data":{"type":"snapshot","bids":[[0.1,5400]],"asks":[]}}}`
	require.NoError(t, adapter.OnMessage([]byte(msg), nil))

	upd := <-receiver.C()
	// 0.1 cannot be represented exactly in float64; a correct decode must
	// still report the exact decimal token, not a float64-perturbed value.
	assert.Equal(t, "0.1", upd.Bids[0].Price.String())
}
