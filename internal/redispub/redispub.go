// Package redispub implements an optional, best-effort secondary fan-out
// of detected arbitrage opportunities over Redis Pub/Sub. Adapted from
// the ingestion service's Redis publisher, narrowed to its ephemeral
// Publish method only: this service carries no persistence, so the
// stream/XAdd/Set-with-TTL methods the teacher used for historical replay
// are deliberately not reproduced here.
package redispub

import (
	"context"
	"encoding/json"
	"fmt"

	"crossspread-arb/internal/book"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher forwards detected opportunities to a Redis channel named
// "arbitrage:<underlying>". Each Publish is a synchronous Redis round
// trip on the caller's goroutine (the OrderBookManager's, via the feed's
// fan-out sink); a publish failure is logged and otherwise ignored.
type Publisher struct {
	client *redis.Client
}

// New connects to addr and pings it once to fail fast on a bad address.
func New(addr string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redispub: ping %s: %w", addr, err)
	}
	return &Publisher{client: client}, nil
}

// Close releases the underlying connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Publish serializes opp and pushes it onto its underlying's channel. It
// never returns an error to the caller: Redis fan-out is a secondary,
// best-effort channel, so a failure here must never affect whether the
// opportunity is still delivered over /stream/v1.
func (p *Publisher) Publish(opp book.ArbitrageOpportunity) {
	data, err := json.Marshal(opp)
	if err != nil {
		log.Error().Err(err).Msg("redispub: failed to marshal opportunity")
		return
	}

	channel := channelFor(opp)
	if err := p.client.Publish(context.Background(), channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("redispub: publish failed")
	}
}

func channelFor(opp book.ArbitrageOpportunity) string {
	return fmt.Sprintf("arbitrage:%s", opp.Product.Underlying)
}
