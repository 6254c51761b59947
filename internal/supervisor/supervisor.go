// Package supervisor runs the service's worker set: the consumer for
// each venue, the order book manager, and the outbound stream server.
// Each worker runs until it returns; the first to return (successfully
// or with an error) causes the supervisor to broadcast shutdown to every
// other worker and wait for them to unwind before returning.
package supervisor

import (
	"fmt"

	"crossspread-arb/internal/appctx"

	"github.com/rs/zerolog/log"
)

// Worker is one supervised unit of work. It must return promptly once
// ctx.Done() is closed.
type Worker struct {
	Name string
	Run  func(ctx *appctx.Context) error
}

// result pairs a worker's name with what it returned.
type result struct {
	name string
	err  error
}

// Supervisor runs a fixed set of workers and returns the result of the
// first one to finish, having first made every other worker unwind.
type Supervisor struct {
	ctx     *appctx.Context
	workers []Worker
}

// New builds a Supervisor sharing ctx with every worker it runs.
func New(ctx *appctx.Context, workers ...Worker) *Supervisor {
	return &Supervisor{ctx: ctx, workers: workers}
}

// Run starts every worker concurrently and blocks until the first one
// returns. That worker's (name, error) is propagated as Run's own
// return value; every other worker is signalled to exit and Run waits
// for all of them before returning.
func (s *Supervisor) Run() (string, error) {
	results := make(chan result, len(s.workers))

	for _, w := range s.workers {
		w := w
		go func() {
			err := w.Run(s.ctx)
			results <- result{name: w.Name, err: err}
		}()
	}

	first := <-results

	reason := appctx.Exit
	if first.err != nil {
		reason = appctx.ExitOnFailure
		log.Error().Str("worker", first.name).Err(first.err).
			Msg("worker exited with an error, shutting down the rest of the service")
	} else {
		log.Info().Str("worker", first.name).Msg("worker exited cleanly, shutting down the rest of the service")
	}
	s.ctx.Cancel(reason)

	for i := 1; i < len(s.workers); i++ {
		<-results
	}

	if first.err != nil {
		return first.name, fmt.Errorf("worker %q: %w", first.name, first.err)
	}
	return first.name, nil
}
