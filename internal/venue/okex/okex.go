// Package okex adapts Okex's public WebSocket order-book channel to the
// venue-agnostic wsconsumer.Handler capability set, grounded on the Okex
// WS framing used elsewhere in this codebase (op/arg subscribe requests,
// event responses, action+data push frames).
package okex

import (
	"encoding/json"
	"fmt"

	"crossspread-arb/internal/book"
	"crossspread-arb/internal/bus"
	"crossspread-arb/internal/metrics"
	"crossspread-arb/internal/product"
	"crossspread-arb/internal/subscription"
	"crossspread-arb/internal/wsconsumer"
	"crossspread-arb/pkg/money"

	"github.com/rs/zerolog/log"
)

const booksChannel = "books"

// level is the wire representation of one order-book price level: a
// 4-element JSON array [price, size, deprecated, orderCount], same shape
// as Okex's own OrderBookLevel.
type level struct {
	Price string
	Size  string
}

func (l *level) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return fmt.Errorf("okex: order book level array too short: %v", arr)
	}
	l.Price = arr[0]
	l.Size = arr[1]
	return nil
}

type wsRequest struct {
	Op   string       `json:"op"`
	Args []wsSubArg   `json:"args"`
}

type wsSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wsResponse struct {
	Event  string          `json:"event,omitempty"`
	Code   string          `json:"code,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	Arg    json.RawMessage `json:"arg,omitempty"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type bookData struct {
	Asks []level `json:"asks"`
	Bids []level `json:"bids"`
}

// Adapter implements wsconsumer.Handler for Okex.
type Adapter struct {
	sender *bus.Sender[book.OrderBookUpdate]
	subs   *subscription.Tracker
}

// New builds an Okex adapter declaring productIDs (Okex instrument ids,
// e.g. "BTC-USD-240510-66000-C") as the products to subscribe on every
// connect.
func New(sender *bus.Sender[book.OrderBookUpdate], productIDs []string) *Adapter {
	return &Adapter{
		sender: sender,
		subs:   subscription.NewTracker(productIDs),
	}
}

// OnConnect sends a subscribe request for every declared product not
// already subscribed or in flight.
func (a *Adapter) OnConnect(w *wsconsumer.Writer) error {
	a.subs.Reset()

	pending := a.subs.PendingProducts()
	if len(pending) == 0 {
		return nil
	}

	args := make([]wsSubArg, 0, len(pending))
	for _, instID := range pending {
		args = append(args, wsSubArg{Channel: booksChannel, InstID: instID})
	}

	payload, err := json.Marshal(wsRequest{Op: "subscribe", Args: args})
	if err != nil {
		return fmt.Errorf("okex: marshal subscribe: %w", err)
	}
	a.subs.MarkInFlight(pending)
	return w.Write(payload)
}

// OnDisconnect clears subscribed/in-flight state so the next OnConnect
// resubscribes from scratch.
func (a *Adapter) OnDisconnect() {
	a.subs.Reset()
}

// OnHeartbeat logs connection liveness; Okex's heartbeat here is a wall
// clock tick for logging, not a protocol-level ping.
func (a *Adapter) OnHeartbeat(w *wsconsumer.Writer) {
	log.Debug().Str("venue", "okex").Msg("heartbeat tick")
}

// OnMessage decodes one inbound frame and, if it carries order book data,
// normalizes it into a book.OrderBookUpdate and forwards it onto the bus.
func (a *Adapter) OnMessage(data []byte, w *wsconsumer.Writer) error {
	if string(data) == "pong" {
		return nil
	}

	var resp wsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("okex: unmarshal response: %w", err)
	}

	if resp.Event != "" {
		return a.handleEvent(resp)
	}

	if len(resp.Data) == 0 {
		return nil
	}

	var arg channelArg
	if err := json.Unmarshal(resp.Arg, &arg); err != nil {
		return fmt.Errorf("okex: unmarshal arg: %w", err)
	}
	if arg.Channel != booksChannel {
		return nil
	}

	// Okex's books channel pushes both action:"snapshot" and
	// action:"update" frames; both are applied identically here (upsert
	// non-zero, delete zero), preserving this service's observed
	// behaviour rather than resetting the book on every snapshot.
	var frames []bookData
	if err := json.Unmarshal(resp.Data, &frames); err != nil {
		return fmt.Errorf("okex: unmarshal book data: %w", err)
	}

	for _, frame := range frames {
		upd, err := normalize(arg.InstID, frame)
		if err != nil {
			metrics.OrderBookParseErrors.WithLabelValues("okex").Inc()
			log.Error().Err(err).Str("venue", "okex").Str("inst_id", arg.InstID).
				Msg("dropping order book frame: failed to normalize")
			continue
		}
		metrics.OrderBookUpdates.WithLabelValues("okex").Inc()
		if !a.sender.Send(upd) {
			metrics.InternalBusDrops.WithLabelValues("okex").Inc()
			log.Warn().Str("venue", "okex").Msg("internal bus full, dropping order book update")
		}
	}

	return nil
}

func (a *Adapter) handleEvent(resp wsResponse) error {
	if resp.Event == "error" {
		return fmt.Errorf("okex: ws error %s: %s", resp.Code, resp.Msg)
	}
	if resp.Event == "subscribe" {
		var arg channelArg
		if err := json.Unmarshal(resp.Arg, &arg); err == nil {
			a.subs.MarkSubscribed(arg.InstID)
		}
	}
	return nil
}

func normalize(instID string, frame bookData) (book.OrderBookUpdate, error) {
	p, err := product.ParseOkexID(instID)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}

	bids, err := toLevels(frame.Bids)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}
	asks, err := toLevels(frame.Asks)
	if err != nil {
		return book.OrderBookUpdate{}, err
	}

	return book.OrderBookUpdate{
		ExchangeProduct: product.ExchangeProduct{Exchange: product.Okex, Product: p},
		Bids:            bids,
		Asks:            asks,
	}, nil
}

func toLevels(wire []level) ([]book.Level, error) {
	out := make([]book.Level, 0, len(wire))
	for _, l := range wire {
		price, err := money.ParseToken(l.Price)
		if err != nil {
			return nil, err
		}
		size, err := money.ParseToken(l.Size)
		if err != nil {
			return nil, err
		}
		out = append(out, book.Level{Price: price, Size: size})
	}
	return out, nil
}
