package liveclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeduperMarkAndSweep(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	d := NewDeduper(WithClock(clock))

	require.False(t, d.HasProcessed("n1"))
	d.MarkProcessed("n1")
	require.True(t, d.HasProcessed("n1"))

	// Idempotent: the first-seen time is kept, so the entry still evicts
	// on the original schedule.
	now = now.Add(4 * time.Minute)
	d.MarkProcessed("n1")

	now = now.Add(90 * time.Second)
	d.Sweep()
	require.False(t, d.HasProcessed("n1"))
}

func TestDeduperSweepKeepsFreshEntries(t *testing.T) {
	now := time.Now()
	d := NewDeduper(WithClock(func() time.Time { return now }))

	d.MarkProcessed("old")
	now = now.Add(4 * time.Minute)
	d.MarkProcessed("fresh")
	now = now.Add(90 * time.Second)

	d.Sweep()
	require.False(t, d.HasProcessed("old"))
	require.True(t, d.HasProcessed("fresh"))
	require.Equal(t, 1, d.Len())
}

func TestDeduperCheckAndMark(t *testing.T) {
	d := NewDeduper()

	require.True(t, d.CheckAndMark("n1"))
	require.False(t, d.CheckAndMark("n1"))
	require.False(t, d.CheckAndMark(""))
}

func TestDeduperListenerGuard(t *testing.T) {
	d := NewDeduper()

	require.True(t, d.TryAttachListener())
	require.False(t, d.TryAttachListener())

	d.DetachListener()
	require.True(t, d.TryAttachListener())
}
