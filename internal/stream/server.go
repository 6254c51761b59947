package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const streamPath = "/stream/v1"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server runs the outbound WebSocket endpoint. There is exactly one
// upgrade path, /stream/v1; every other path returns 404 with a JSON
// body, and the endpoint accepts no subscription protocol: every client
// that connects receives every opportunity from that point on.
type Server struct {
	hub    *Hub
	server *http.Server
}

// NewServer binds a Server to 0.0.0.0:port.
func NewServer(port int, hub *Hub) *Server {
	mux := http.NewServeMux()
	s := &Server{hub: hub}

	mux.HandleFunc(streamPath, s.handleStream)
	mux.HandleFunc("/", s.handleNotFound)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the server until Stop is called. It returns
// http.ErrServerClosed on a clean Stop, which callers should treat as
// success.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Str("path", streamPath).Msg("starting outbound websocket server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode("not found")
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("stream: websocket upgrade failed")
		return
	}

	sub, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// Exactly one read per loop iteration: the endpoint accepts no
		// subscription protocol, so any inbound frame just confirms the
		// client is still alive until it closes the connection.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer conn.Close()
	for {
		select {
		case <-closed:
			return
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
