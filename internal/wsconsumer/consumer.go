// Package wsconsumer implements the resilient WebSocket consumer state
// machine shared by every venue adapter: connect, read, heartbeat and
// write all racing one shutdown signal, with scheduled reconnects on
// Warning and termination on UnrecoverableError.
package wsconsumer

import (
	"crossspread-arb/internal/appctx"
	"crossspread-arb/internal/backoff"
	"crossspread-arb/internal/metrics"
	"crossspread-arb/internal/svcerr"

	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const outboundQueueCapacity = 100

// Handler is the venue-agnostic capability set a WsConsumer drives. Each
// concrete venue (Okex, Deribit) implements exactly one Handler; the
// consumer itself knows nothing about either venue's wire format.
type Handler interface {
	// OnConnect runs exactly once per successful handshake, before any
	// OnMessage call for that connection. It typically sends the venue's
	// subscribe frames via w.
	OnConnect(w *Writer) error
	// OnMessage runs once per inbound frame, strictly sequentially: the
	// consumer never calls OnMessage again until the previous call
	// returns.
	OnMessage(data []byte, w *Writer) error
	// OnDisconnect runs exactly once per connection that was previously
	// connected, whether the disconnect was caused by a read error or by
	// shutdown.
	OnDisconnect()
	// OnHeartbeat runs on every Config.HeartbeatInterval tick. The
	// consumer sends no protocol-level ping on that tick;
	// implementations typically just log connection liveness.
	OnHeartbeat(w *Writer)
}

// Config configures one WsConsumer instance.
type Config struct {
	Name              string // for logs/metrics, e.g. "okex" or "deribit"
	URL               string
	HeartbeatInterval time.Duration
	Handler           Handler
	Backoff           *backoff.Schedule
}

// Consumer drives one outbound WebSocket connection through
// Idle -> Connecting -> Connected, reconnecting per its backoff schedule
// on Warning and terminating on UnrecoverableError.
type Consumer struct {
	cfg       Config
	connected atomic.Bool // single writer (Run's goroutine); readers diagnostic only
}

// New constructs a Consumer. cfg.Backoff defaults to a 1s/30s/unbounded
// schedule if nil.
func New(cfg Config) *Consumer {
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.New(time.Second, 30*time.Second, 0)
	}
	return &Consumer{cfg: cfg}
}

// IsConnected reports the current connection state. It is diagnostic
// only: nothing in this package makes a decision based on a reader
// observing this value, since the single writer is always Run's own
// goroutine.
func (c *Consumer) IsConnected() bool {
	return c.connected.Load()
}

// Run drives the consumer until ctx is cancelled or the handler returns
// an Unrecoverable error, at which point Run returns that error. A clean
// shutdown (ctx cancelled) returns nil.
func (c *Consumer) Run(ctx *appctx.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.runOnce(ctx)
		if err == nil {
			return nil // clean shutdown observed inside runOnce
		}

		var unrecoverable *svcerr.Unrecoverable
		if isUnrecoverable(err, &unrecoverable) {
			return err
		}

		delay, exhausted := c.cfg.Backoff.Next()
		if exhausted {
			return svcerr.NewUnrecoverable(c.cfg.Name, fmt.Errorf("reconnect attempts exhausted: %w", err))
		}

		metrics.ReconnectAttempts.WithLabelValues(c.cfg.Name).Inc()
		log.Warn().
			Str("venue", c.cfg.Name).
			Err(err).
			Dur("retry_in", delay).
			Msg("connection lost, scheduling reconnect")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func isUnrecoverable(err error, target **svcerr.Unrecoverable) bool {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if u, ok := e.(*svcerr.Unrecoverable); ok {
			*target = u
			return true
		}
		uw, ok := e.(unwrapper)
		if !ok {
			return false
		}
		e = uw.Unwrap()
	}
	return false
}

func isWarning(err error, target **svcerr.Warning) bool {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if w, ok := e.(*svcerr.Warning); ok {
			*target = w
			return true
		}
		uw, ok := e.(unwrapper)
		if !ok {
			return false
		}
		e = uw.Unwrap()
	}
	return false
}

// runOnce performs a single connect-to-disconnect cycle. It returns nil
// only when ctx was cancelled (clean shutdown); any other return value is
// an error to be classified by Run.
func (c *Consumer) runOnce(ctx *appctx.Context) error {
	connID := uuid.NewString()
	logger := log.With().Str("venue", c.cfg.Name).Str("connection_id", connID).Logger()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return svcerr.NewWarning(c.cfg.Name, fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()

	c.cfg.Backoff.Reset()
	c.connected.Store(true)
	metrics.ConnectionState.WithLabelValues(c.cfg.Name).Set(1)
	defer c.connected.Store(false)
	defer metrics.ConnectionState.WithLabelValues(c.cfg.Name).Set(0)
	defer c.cfg.Handler.OnDisconnect()

	writer := newWriter(conn, outboundQueueCapacity, logger)
	defer writer.stop()

	if err := c.cfg.Handler.OnConnect(writer); err != nil {
		return classify(c.cfg.Name, "on_connect", err)
	}

	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			inbound <- msg
		}
	}()

	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	var messagesSinceHeartbeat uint64

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return svcerr.NewWarning(c.cfg.Name, fmt.Errorf("read: %w", err))
			}
			return svcerr.NewWarning(c.cfg.Name, fmt.Errorf("connection closed: %w", err))

		case msg := <-inbound:
			messagesSinceHeartbeat++
			timer := metrics.NewTimer(metrics.MessageProcessingDuration, c.cfg.Name)
			err := c.cfg.Handler.OnMessage(msg, writer)
			timer.Stop()
			if err != nil {
				cerr := classify(c.cfg.Name, "on_message", err)
				var unrecoverable *svcerr.Unrecoverable
				var warning *svcerr.Warning
				switch {
				case isUnrecoverable(cerr, &unrecoverable):
					return cerr
				case isWarning(cerr, &warning):
					return cerr // scheduled reconnect, per callback Warning rule
				default:
					logger.Error().Err(cerr).Msg("on_message callback failed")
				}
			}

		case <-heartbeat.C:
			logger.Debug().Uint64("messages_since_last_heartbeat", messagesSinceHeartbeat).Msg("heartbeat")
			messagesSinceHeartbeat = 0
			c.cfg.Handler.OnHeartbeat(writer)

		case werr := <-writer.errs:
			return svcerr.NewWarning(c.cfg.Name, fmt.Errorf("write queue: %w", werr))
		}
	}
}

// classify turns an arbitrary handler error into the taxonomy: an error
// that is already one of our kinds passes through unchanged, anything
// else becomes a GenericError.
func classify(venue, op string, err error) error {
	switch err.(type) {
	case *svcerr.Warning, *svcerr.GenericError, *svcerr.Unrecoverable:
		return err
	default:
		return svcerr.NewGenericError(fmt.Sprintf("%s.%s", venue, op), err)
	}
}
