package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingExcludesSubscribedAndInFlight(t *testing.T) {
	tr := NewTracker([]string{"a", "b", "c"})
	tr.MarkSubscribed("a")
	tr.MarkInFlight([]string{"b"})

	assert.Equal(t, []string{"c"}, tr.PendingProducts())
}

func TestMarkSubscribedClearsInFlight(t *testing.T) {
	tr := NewTracker([]string{"a"})
	tr.MarkInFlight([]string{"a"})
	tr.MarkSubscribed("a")

	assert.Empty(t, tr.PendingProducts())
}

func TestResetClearsAllState(t *testing.T) {
	tr := NewTracker([]string{"a", "b"})
	tr.MarkSubscribed("a")
	tr.MarkInFlight([]string{"b"})

	tr.Reset()
	assert.ElementsMatch(t, []string{"a", "b"}, tr.PendingProducts())
}
