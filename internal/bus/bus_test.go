package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndReceive(t *testing.T) {
	b := New[int]()
	sender := b.Sender()
	receiver := b.Receiver()

	require.True(t, sender.Send(42))
	assert.Equal(t, 42, <-receiver.C())
}

func TestOverflowDropsNonFatally(t *testing.T) {
	b := NewWithCapacity[int](2)
	sender := b.Sender()

	assert.True(t, sender.Send(1))
	assert.True(t, sender.Send(2))
	assert.False(t, sender.Send(3), "third send should be dropped, not block")
}

func TestSecondReceiverTakeFailsLoudly(t *testing.T) {
	b := New[int]()
	b.Receiver()

	assert.Panics(t, func() {
		b.Receiver()
	})
}

func TestMultipleProducersOneConsumer(t *testing.T) {
	b := New[int]()
	receiver := b.Receiver()

	senderA := b.Sender()
	senderB := b.Sender()
	senderA.Send(1)
	senderB.Send(2)

	seen := map[int]bool{<-receiver.C(): true, <-receiver.C(): true}
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}
