package reconnect

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSequence(t *testing.T) {
	m := New(Options{Clock: clock.NewMock()})
	defer m.Close()

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, m.ScheduleReconnect("s1", func() {}))
	}

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 7, m.Attempts("s1"))

	m.ResetAttempts("s1")
	assert.Equal(t, 0, m.Attempts("s1"))
	assert.Equal(t, time.Second, m.ScheduleReconnect("s1", func() {}))
}

func TestResetAttemptsKeepsPendingTimer(t *testing.T) {
	clk := clock.NewMock()
	m := New(Options{Clock: clk})
	defer m.Close()

	var fired int32
	m.ScheduleReconnect("s1", func() {})
	m.ScheduleReconnect("s1", func() { atomic.AddInt32(&fired, 1) })

	m.ResetAttempts("s1")
	assert.Equal(t, 0, m.Attempts("s1"))
	assert.True(t, m.Pending("s1"))

	clk.Add(2 * time.Second)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 10*time.Millisecond)
	assert.False(t, m.Pending("s1"))

	m.ScheduleReconnect("s1", func() {})
	m.Cancel("s1")
	assert.False(t, m.Pending("s1"))
}

func TestScheduleReplacesPendingTimer(t *testing.T) {
	clk := clock.NewMock()
	m := New(Options{Clock: clk})
	defer m.Close()

	var first, second int32
	m.ScheduleReconnect("s1", func() { atomic.AddInt32(&first, 1) })
	m.ScheduleReconnect("s1", func() { atomic.AddInt32(&second, 1) })

	clk.Add(2 * time.Second)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&second) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
	assert.False(t, m.Pending("s1"))
}

func TestKeysAreIndependent(t *testing.T) {
	m := New(Options{Clock: clock.NewMock()})
	defer m.Close()

	m.ScheduleReconnect("s1", func() {})
	m.ScheduleReconnect("s1", func() {})
	assert.Equal(t, time.Second, m.ScheduleReconnect("s2", func() {}))
}

func TestCancelStopsTimer(t *testing.T) {
	clk := clock.NewMock()
	m := New(Options{Clock: clk})

	var fired int32
	m.ScheduleReconnect("s1", func() { atomic.AddInt32(&fired, 1) })
	m.Cancel("s1")

	clk.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, m.Attempts("s1"))
}

func TestServerRetryIsIdempotent(t *testing.T) {
	clk := clock.NewMock()
	m := New(Options{Clock: clk, ProbeInterval: 5 * time.Second})
	defer m.Close()

	var first, second int32
	m.StartServerRetry("host:443", func() { atomic.AddInt32(&first, 1) })
	m.StartServerRetry("host:443", func() { atomic.AddInt32(&second, 1) })
	assert.True(t, m.Probing("host:443"))

	clk.Add(5 * time.Second)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&first) == 1
	}, time.Second, 10*time.Millisecond)

	clk.Add(5 * time.Second)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&first) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&second))

	m.StopServerRetry("host:443")
	assert.False(t, m.Probing("host:443"))
	m.StopServerRetry("host:443")

	clk.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&first))
}

func TestStopAllRetries(t *testing.T) {
	m := New(Options{Clock: clock.NewMock()})
	defer m.Close()

	m.StartServerRetry("a", func() {})
	m.StartServerRetry("b", func() {})
	m.StopAllRetries()

	assert.False(t, m.Probing("a"))
	assert.False(t, m.Probing("b"))
}
