// Package deribit adapts Deribit's public JSON-RPC 2.0 WebSocket API to
// the venue-agnostic wsconsumer.Handler capability set, grounded on the
// JSON-RPC public/subscribe shape and channel-push dispatch pattern used
// by Deribit integrations elsewhere in the ecosystem.
package deribit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"crossspread-arb/internal/book"
	"crossspread-arb/internal/bus"
	"crossspread-arb/internal/metrics"
	"crossspread-arb/internal/product"
	"crossspread-arb/internal/subscription"
	"crossspread-arb/internal/wsconsumer"
	"crossspread-arb/pkg/money"

	"github.com/rs/zerolog/log"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

// rpcMessage is shape-disambiguated structurally: a JSON-RPC response
// carries "id" and "result", a subscription push carries "method" and
// "params". Both are tried against the same envelope rather than keyed
// on a single tag field, since Deribit's JSON-RPC frames don't carry one.
type rpcMessage struct {
	ID     *int64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subscriptionParams struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type bookData struct {
	Type  string  `json:"type"`
	Bids  []level `json:"bids"`
	Asks  []level `json:"asks"`
}

// level unmarshals a Deribit book level, which for an ungrouped ("none")
// channel is either a [price, amount] pair (snapshot) or an
// [action, price, amount] triple (incremental change). Price/amount are
// JSON numbers decoded into json.Number so the token text reaches
// money.ParseToken untouched by any float64 conversion.
type level struct {
	Price json.Number
	Size  json.Number
}

func (l *level) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var nums []json.RawMessage
	switch len(raw) {
	case 2:
		nums = raw
	case 3:
		nums = raw[1:] // raw[0] is the action string
	default:
		return fmt.Errorf("deribit: unexpected level array length %d", len(raw))
	}
	if err := json.Unmarshal(nums[0], &l.Price); err != nil {
		return err
	}
	return json.Unmarshal(nums[1], &l.Size)
}

// Adapter implements wsconsumer.Handler for Deribit.
type Adapter struct {
	sender  *bus.Sender[book.OrderBookUpdate]
	subs    *subscription.Tracker
	nextID  int64
	pending map[int64][]string // rpc request id -> channels it asked for, to mark them subscribed on result
}

// New builds a Deribit adapter declaring channels (full Deribit channel
// names, e.g. "book.BTC-10MAY24-66000-C.none.20.100ms") as the channels
// to subscribe on every connect.
func New(sender *bus.Sender[book.OrderBookUpdate], channels []string) *Adapter {
	return &Adapter{
		sender:  sender,
		subs:    subscription.NewTracker(channels),
		pending: make(map[int64][]string),
	}
}

// OnConnect issues one public/subscribe request per declared channel not
// already subscribed or in flight: id is the per-product sequence index,
// so each channel's acknowledgement can be tracked against its own
// request rather than batched behind a single shared id.
func (a *Adapter) OnConnect(w *wsconsumer.Writer) error {
	a.subs.Reset()

	pending := a.subs.PendingProducts()
	if len(pending) == 0 {
		return nil
	}

	for _, channel := range pending {
		id := atomic.AddInt64(&a.nextID, 1)
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "public/subscribe",
			Params:  subscribeParams{Channels: []string{channel}},
		}
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("deribit: marshal subscribe: %w", err)
		}
		a.subs.MarkInFlight([]string{channel})
		a.pending[id] = []string{channel}
		if err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// OnDisconnect clears subscribed/in-flight state so the next OnConnect
// resubscribes from scratch.
func (a *Adapter) OnDisconnect() {
	a.subs.Reset()
	a.pending = make(map[int64][]string)
}

// OnHeartbeat logs connection liveness; this is a wall-clock tick for
// logging only, distinct from Deribit's own protocol heartbeat feature,
// which this service does not opt into.
func (a *Adapter) OnHeartbeat(w *wsconsumer.Writer) {
	log.Debug().Str("venue", "deribit").Msg("heartbeat tick")
}

// OnMessage dispatches one inbound frame: a frame carrying an id is
// handled as a JSON-RPC response (ids with no pending request are
// ignored there), otherwise a "subscription" method frame is handled as
// a channel push.
func (a *Adapter) OnMessage(data []byte, w *wsconsumer.Writer) error {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("deribit: unmarshal message: %w", err)
	}

	if msg.ID != nil {
		return a.handleResponse(msg)
	}
	if msg.Method == "subscription" {
		return a.handlePush(msg)
	}
	return nil
}

// handleResponse matches a JSON-RPC response to the channels its request
// asked for and marks subscribed only those channels actually present in
// result — the list of channels Deribit acknowledges, per spec.md's
// documented response shape {jsonrpc, id, result:[channel...]}. A channel
// requested but absent from a partial-ack result is left in flight rather
// than marked subscribed, so it is not silently treated as live.
func (a *Adapter) handleResponse(msg rpcMessage) error {
	if msg.Error != nil {
		return fmt.Errorf("deribit: rpc error %d: %s", msg.Error.Code, msg.Error.Message)
	}
	channels, ok := a.pending[*msg.ID]
	if !ok {
		return nil
	}
	delete(a.pending, *msg.ID)

	var acked []string
	if len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, &acked); err != nil {
			return fmt.Errorf("deribit: unmarshal subscribe result: %w", err)
		}
	}
	ackedSet := make(map[string]bool, len(acked))
	for _, ch := range acked {
		ackedSet[ch] = true
	}

	for _, ch := range channels {
		if ackedSet[ch] {
			a.subs.MarkSubscribed(ch)
			continue
		}
		log.Warn().Str("venue", "deribit").Str("channel", ch).
			Msg("channel not present in subscribe acknowledgement, leaving in flight")
	}
	return nil
}

func (a *Adapter) handlePush(msg rpcMessage) error {
	var params subscriptionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return fmt.Errorf("deribit: unmarshal push params: %w", err)
	}
	if !strings.HasPrefix(params.Channel, "book.") {
		return nil
	}

	instrumentName := instrumentFromChannel(params.Channel)
	if instrumentName == "" {
		return fmt.Errorf("deribit: malformed book channel %q", params.Channel)
	}

	var data bookData
	if err := json.Unmarshal(params.Data, &data); err != nil {
		return fmt.Errorf("deribit: unmarshal book data: %w", err)
	}

	upd, err := normalize(instrumentName, data)
	if err != nil {
		metrics.OrderBookParseErrors.WithLabelValues("deribit").Inc()
		log.Error().Err(err).Str("venue", "deribit").Str("instrument", instrumentName).
			Msg("dropping order book frame: failed to normalize")
		return nil
	}
	metrics.OrderBookUpdates.WithLabelValues("deribit").Inc()
	if !a.sender.Send(upd) {
		metrics.InternalBusDrops.WithLabelValues("deribit").Inc()
		log.Warn().Str("venue", "deribit").Msg("internal bus full, dropping order book update")
	}
	return nil
}

// instrumentFromChannel extracts "BTC-10MAY24-66000-C" out of
// "book.BTC-10MAY24-66000-C.none.20.100ms".
func instrumentFromChannel(channel string) string {
	parts := strings.Split(channel, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func normalize(instrumentName string, data bookData) (book.OrderBookUpdate, error) {
	p, err := product.ParseDeribitID(instrumentName)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}

	bids, err := toLevels(data.Bids)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}
	asks, err := toLevels(data.Asks)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}

	return book.OrderBookUpdate{
		ExchangeProduct: product.ExchangeProduct{Exchange: product.Deribit, Product: p},
		Bids:            bids,
		Asks:            asks,
	}, nil
}

func toLevels(wire []level) ([]book.Level, error) {
	out := make([]book.Level, 0, len(wire))
	for _, l := range wire {
		price, err := money.ParseToken(string(l.Price))
		if err != nil {
			return nil, err
		}
		size, err := money.ParseToken(string(l.Size))
		if err != nil {
			return nil, err
		}
		out = append(out, book.Level{Price: price, Size: size})
	}
	return out, nil
}
