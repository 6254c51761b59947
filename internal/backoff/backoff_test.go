package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstDelayIsZero(t *testing.T) {
	s := New(100*time.Millisecond, time.Second, 5)
	delay, exhausted := s.Next()
	assert.False(t, exhausted)
	assert.Zero(t, delay)
}

func TestDelaysDoubleUpToCap(t *testing.T) {
	s := New(100*time.Millisecond, 350*time.Millisecond, 10)

	got := []time.Duration{}
	for i := 0; i < 5; i++ {
		d, exhausted := s.Next()
		assert.False(t, exhausted)
		got = append(got, d)
	}

	assert.Equal(t, []time.Duration{
		0,
		100 * time.Millisecond,
		200 * time.Millisecond,
		350 * time.Millisecond, // capped from 400ms
		350 * time.Millisecond,
	}, got)
}

func TestExhaustsAfterMaxAttempts(t *testing.T) {
	s := New(10*time.Millisecond, time.Second, 2)
	_, exhausted := s.Next()
	assert.False(t, exhausted)
	_, exhausted = s.Next()
	assert.False(t, exhausted)
	_, exhausted = s.Next()
	assert.True(t, exhausted)
}

func TestResetRestartsSequence(t *testing.T) {
	s := New(10*time.Millisecond, time.Second, 3)
	s.Next()
	s.Next()
	s.Reset()

	d, exhausted := s.Next()
	assert.False(t, exhausted)
	assert.Zero(t, d)
	assert.Equal(t, 1, s.Attempts())
}
