package shared

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls, last atomic.Int64
	for i := int64(1); i <= 5; i++ {
		value := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(value)
		})
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, int64(5), last.Load())
}

func TestDebouncerZeroDelayRunsInline(t *testing.T) {
	d := NewDebouncer(0)
	ran := false
	d.Trigger(func() { ran = true })
	require.True(t, ran)
}

func TestDebouncerStopDropsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int64
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(80 * time.Millisecond)
	require.Zero(t, calls.Load())
}
