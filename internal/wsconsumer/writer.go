package wsconsumer

import (
	"errors"
	"sync"

	"crossspread-arb/internal/svcerr"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Write when the outbound queue is saturated.
// The consumer fails fast rather than blocking a producer.
var ErrQueueFull = errors.New("wsconsumer: outbound write queue full")

// Writer is the bounded, non-blocking outbound write queue every venue
// adapter uses to send its subscribe frames. A single background goroutine drains it
// onto the underlying connection so callers never block on socket I/O.
type Writer struct {
	queue  chan []byte
	errs   chan error
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newWriter(conn *websocket.Conn, capacity int, logger zerolog.Logger) *Writer {
	w := &Writer{
		queue:  make(chan []byte, capacity),
		errs:   make(chan error, 1),
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.stopCh:
				return
			case msg := <-w.queue:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					logger.Warn().Err(err).Msg("outbound write failed")
					select {
					case w.errs <- err:
					default:
					}
					return
				}
			}
		}
	}()
	return w
}

// Write enqueues msg for delivery. It never blocks: if the queue is full
// it returns a GenericError wrapping ErrQueueFull immediately. Returned
// from OnMessage, that error is logged and the connection keeps running;
// returned from OnConnect, it ends the connection and a reconnect is
// scheduled.
func (w *Writer) Write(msg []byte) error {
	select {
	case w.queue <- msg:
		return nil
	default:
		return svcerr.NewGenericError("wsconsumer.write", ErrQueueFull)
	}
}

func (w *Writer) stop() {
	close(w.stopCh)
	w.wg.Wait()
}
