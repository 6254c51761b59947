package supervisor

import (
	"errors"
	"testing"
	"time"

	"crossspread-arb/internal/appctx"

	"github.com/stretchr/testify/assert"
)

func TestFirstWorkerToReturnPropagatesResult(t *testing.T) {
	ctx := appctx.New()
	s := New(ctx,
		Worker{Name: "fast", Run: func(ctx *appctx.Context) error { return nil }},
		Worker{Name: "slow", Run: func(ctx *appctx.Context) error {
			<-ctx.Done()
			return nil
		}},
	)

	name, err := s.Run()
	assert.Equal(t, "fast", name)
	assert.NoError(t, err)
}

func TestFailingWorkerTriggersShutdownOfOthers(t *testing.T) {
	ctx := appctx.New()
	boom := errors.New("boom")

	unwound := make(chan struct{})
	s := New(ctx,
		Worker{Name: "failing", Run: func(ctx *appctx.Context) error { return boom }},
		Worker{Name: "sibling", Run: func(ctx *appctx.Context) error {
			<-ctx.Done()
			close(unwound)
			return nil
		}},
	)

	name, err := s.Run()
	assert.Equal(t, "failing", name)
	assert.ErrorIs(t, err, boom)

	select {
	case <-unwound:
	case <-time.After(time.Second):
		t.Fatal("sibling worker was never signalled to unwind")
	}
}
