package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleAcceptRetryWakesReactor(t *testing.T) {
	a, _ := newTestAdapter(1024)
	p := newFakePoller()
	a.poller = p

	delay := a.scheduleAcceptRetry()
	assert.Equal(t, minAcceptDelay, delay)
	assert.True(t, a.acceptRetry.Load())

	select {
	case <-p.wakes:
	case <-time.After(time.Second):
		require.FailNow(t, "reactor was not woken for the accept retry")
	}
}

func TestScheduleAcceptRetryBacksOff(t *testing.T) {
	a, _ := newTestAdapter(1024)
	a.poller = newFakePoller()
	t.Cleanup(func() { a.acceptTimer.Stop() })

	assert.Equal(t, minAcceptDelay, a.scheduleAcceptRetry())
	assert.Equal(t, 2*minAcceptDelay, a.scheduleAcceptRetry())
	assert.Equal(t, 4*minAcceptDelay, a.scheduleAcceptRetry())

	for i := 0; i < 20; i++ {
		a.scheduleAcceptRetry()
	}
	assert.Equal(t, maxAcceptDelay, a.acceptDelay, "delay is capped")
}

func TestScheduleAcceptRetrySkippedDuringShutdown(t *testing.T) {
	a, _ := newTestAdapter(1024)
	p := newFakePoller()
	a.poller = p
	a.InitiateShutdown()

	a.scheduleAcceptRetry()

	select {
	case <-p.wakes:
		assert.Fail(t, "woke the reactor during shutdown")
	case <-time.After(20 * minAcceptDelay):
	}
}
