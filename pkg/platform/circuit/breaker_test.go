package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("kafka")
	assert.Equal(t, "kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b := New("kafka", WithFailureThreshold(2))

	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.False(t, change.Opened)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")
}

func TestBreakerSuccessClearsFailureStreak(t *testing.T) {
	b := New("kafka", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessStreak(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	b.RecordFailure()
	primary, _ = b.RecordSuccess()
	assert.False(t, primary, "failure restarts the success streak")

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("kafka", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}
