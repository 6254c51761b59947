package appctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelClosesDone(t *testing.T) {
	c := New()
	assert.False(t, c.Cancelled())

	c.Cancel(Exit)
	assert.True(t, c.Cancelled())
	<-c.Done() // must not block

	assert.Equal(t, Exit, c.Reason())
}

func TestCancelIsIdempotent(t *testing.T) {
	c := New()
	c.Cancel(ExitOnFailure)
	c.Cancel(Exit) // second call must not panic or change the reason

	assert.Equal(t, ExitOnFailure, c.Reason())
}
