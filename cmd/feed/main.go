// Command feed is the arbitrage service's process entrypoint: it wires
// one wsconsumer per venue, the internal bus between them and the order
// book manager, the outbound /stream/v1 fan-out, and the metrics server,
// then runs all of them under one supervisor until shutdown.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"crossspread-arb/internal/appctx"
	"crossspread-arb/internal/backoff"
	"crossspread-arb/internal/book"
	"crossspread-arb/internal/bus"
	"crossspread-arb/internal/config"
	"crossspread-arb/internal/metrics"
	"crossspread-arb/internal/redispub"
	"crossspread-arb/internal/stream"
	"crossspread-arb/internal/supervisor"
	"crossspread-arb/internal/venue/deribit"
	"crossspread-arb/internal/venue/okex"
	"crossspread-arb/internal/wsconsumer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("feed exited with an error")
		os.Exit(1)
	}
}

func run(cfg config.Map) error {
	appName := cfg.Get("app_name", "default")

	workerThreads, err := cfg.Int("tokio.worker_threads", 4)
	if err != nil {
		return err
	}
	runtime.GOMAXPROCS(workerThreads)

	wsPort, err := cfg.Int("websocket_server_endpoint", 9027)
	if err != nil {
		return err
	}

	okexURL, err := cfg.MustGet("okex_ws_url")
	if err != nil {
		return err
	}
	okexHeartbeat, err := cfg.MustMillis("okex_heartbeat_millis")
	if err != nil {
		return err
	}
	okexProducts := cfg.CSV("okex_products_to_subscribe")

	deribitURL, err := cfg.MustGet("deribit_ws_url")
	if err != nil {
		return err
	}
	deribitHeartbeat, err := cfg.MustMillis("deribit_heartbeat_millis")
	if err != nil {
		return err
	}
	deribitChannels, err := cfg.MustCSV("deribit_products_to_subscribe")
	if err != nil {
		return err
	}

	metricsAddr := cfg.Get("metrics_addr", ":9090")
	redisAddr := cfg.Get("redis_pubsub_addr", "")

	log.Info().
		Str("app_name", appName).
		Int("worker_threads", workerThreads).
		Int("websocket_server_endpoint", wsPort).
		Str("okex_ws_url", okexURL).
		Int("okex_products", len(okexProducts)).
		Str("deribit_ws_url", deribitURL).
		Int("deribit_channels", len(deribitChannels)).
		Str("metrics_addr", metricsAddr).
		Bool("redis_pubsub_enabled", redisAddr != "").
		Msg("starting crossspread-arb feed")

	ctx := appctx.New()

	updates := bus.New[book.OrderBookUpdate]()

	okexAdapter := okex.New(updates.Sender(), okexProducts)
	okexConsumer := wsconsumer.New(wsconsumer.Config{
		Name:              "okex",
		URL:               okexURL,
		HeartbeatInterval: okexHeartbeat,
		Handler:           okexAdapter,
		Backoff:           backoff.New(time.Second, 30*time.Second, 0),
	})

	deribitAdapter := deribit.New(updates.Sender(), deribitChannels)
	deribitConsumer := wsconsumer.New(wsconsumer.Config{
		Name:              "deribit",
		URL:               deribitURL,
		HeartbeatInterval: deribitHeartbeat,
		Handler:           deribitAdapter,
		Backoff:           backoff.New(time.Second, 30*time.Second, 0),
	})

	hub := stream.NewHub()
	streamServer := stream.NewServer(wsPort, hub)
	metricsServer := metrics.NewServer(metricsAddr)

	var redisPub *redispub.Publisher
	if redisAddr != "" {
		redisPub, err = redispub.New(redisAddr)
		if err != nil {
			return fmt.Errorf("redis pubsub: %w", err)
		}
		defer redisPub.Close()
	}

	sink := book.OpportunitySink(hub)
	if redisPub != nil {
		sink = fanoutSink{primary: hub, secondary: redisPub}
	}
	manager := book.NewManager(sink)

	sv := supervisor.New(ctx,
		supervisor.Worker{Name: "okex_consumer", Run: okexConsumer.Run},
		supervisor.Worker{Name: "deribit_consumer", Run: deribitConsumer.Run},
		supervisor.Worker{
			Name: "book_manager",
			Run: func(ctx *appctx.Context) error {
				manager.Run(ctx, updates.Receiver())
				return nil
			},
		},
		supervisor.Worker{
			Name: "stream_server",
			Run:  runUntilCancelled(streamServer.Start, streamServer.Stop),
		},
		supervisor.Worker{
			Name: "metrics_server",
			Run:  runUntilCancelled(metricsServer.Start, metricsServer.Stop),
		},
	)

	go waitForSignal(ctx)

	name, err := sv.Run()
	log.Info().Str("first_worker_to_exit", name).Msg("shutdown complete")
	return err
}

// runUntilCancelled adapts a blocking Start/Stop server pair (which
// returns http.ErrServerClosed on a clean Stop) into a supervisor.Worker
// func: it races the server's own Start error against ctx cancellation
// and always treats a Stop-triggered return as success.
func runUntilCancelled(start func() error, stop func() error) func(ctx *appctx.Context) error {
	return func(ctx *appctx.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- start() }()

		select {
		case <-ctx.Done():
			_ = stop()
			<-errCh
			return nil
		case err := <-errCh:
			if err == nil {
				return nil
			}
			return err
		}
	}
}

// waitForSignal triggers a clean shutdown on SIGINT/SIGTERM, the same
// signal set the ingestion service's entrypoint waits on.
func waitForSignal(ctx *appctx.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		ctx.Cancel(appctx.Exit)
	case <-ctx.Done():
	}
}

// fanoutSink publishes every opportunity to the outbound WebSocket hub
// (the authoritative delivery channel) and, best-effort, to Redis. Its
// own Publish return value always reflects the primary hub only: Redis
// delivery must never affect whether the manager considers an
// opportunity "delivered".
type fanoutSink struct {
	primary   *stream.Hub
	secondary *redispub.Publisher
}

func (f fanoutSink) Publish(opp book.ArbitrageOpportunity) bool {
	delivered := f.primary.Publish(opp)
	f.secondary.Publish(opp)
	return delivered
}
