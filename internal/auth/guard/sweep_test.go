package guard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admitN(t *testing.T, g *Guard, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		tok, err := g.Issue()
		require.NoError(t, err)
		require.NoError(t, g.Admit(tok))
	}
}

func TestSweep_KeepsUnexpired(t *testing.T) {
	clk := newFakeClock()
	g := newTestGuard(t, clk)
	admitN(t, g, 3)

	evicted, ran := g.Sweep()
	assert.True(t, ran)
	assert.Zero(t, evicted)
	assert.Equal(t, 3, g.Used())
}

func TestSweep_Idempotent(t *testing.T) {
	clk := newFakeClock()
	g := newTestGuard(t, clk)
	admitN(t, g, 4)

	clk.Advance(3 * time.Minute)
	admitN(t, g, 2)
	clk.Advance(3 * time.Minute)

	evicted, _ := g.Sweep()
	assert.Equal(t, 4, evicted)
	after := g.Used()

	evicted, ran := g.Sweep()
	assert.True(t, ran)
	assert.Zero(t, evicted)
	assert.Equal(t, after, g.Used())
}

func TestSweep_BoundedMemory(t *testing.T) {
	for _, n := range []int{1, 10, 250} {
		clk := newFakeClock()
		g := newTestGuard(t, clk)
		admitN(t, g, n)
		require.Equal(t, n, g.Used())

		clk.Advance(g.TTL() + time.Second)
		g.Sweep()
		assert.Zero(t, g.Used(), "n=%d", n)
	}
}

func TestSweep_SkipsWhileAnotherRuns(t *testing.T) {
	clk := newFakeClock()
	g := newTestGuard(t, clk)
	admitN(t, g, 2)
	clk.Advance(time.Hour)

	g.sweeping.Store(true)
	evicted, ran := g.Sweep()
	assert.False(t, ran)
	assert.Zero(t, evicted)
	assert.Equal(t, 2, g.Used())

	g.sweeping.Store(false)
	evicted, ran = g.Sweep()
	assert.True(t, ran)
	assert.Equal(t, 2, evicted)
}

func TestSweep_ClockPanicEvicts(t *testing.T) {
	var explode atomic.Bool
	clk := newFakeClock()
	g, err := New(Config{
		Secret: "secret",
		Now: func() time.Time {
			if explode.Load() {
				panic("clock failure")
			}
			return clk.Now()
		},
	})
	require.NoError(t, err)
	admitN(t, g, 3)

	explode.Store(true)
	evicted, ran := g.Sweep()
	explode.Store(false)

	assert.True(t, ran)
	assert.Equal(t, 3, evicted)
	assert.Zero(t, g.Used())
	assert.False(t, g.sweeping.Load(), "in-progress flag must be released")
}

func TestStartStop_SweepsOnInterval(t *testing.T) {
	clk := newFakeClock()
	g, err := New(Config{Secret: "secret", SweepInterval: 5 * time.Millisecond, Now: clk.Now})
	require.NoError(t, err)
	admitN(t, g, 5)
	clk.Advance(time.Hour)

	g.Start()
	g.Start()
	require.Eventually(t, func() bool { return g.Used() == 0 }, time.Second, 5*time.Millisecond)
	g.Stop()
	g.Stop()

	// Nothing may sweep after Stop returned.
	clk.Advance(-time.Hour)
	admitN(t, g, 2)
	clk.Advance(time.Hour)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, g.Used())
}

func TestStop_WithoutStart(t *testing.T) {
	g := newTestGuard(t, newFakeClock())
	assert.NotPanics(t, g.Stop)
}

func TestAdmit_SweepBetweenVerifyAndConsume(t *testing.T) {
	clk := newFakeClock()
	var (
		g       *Guard
		armed   atomic.Bool
		evicted int
	)
	// Once armed, the next clock read (the expiry check of Admit) lets a
	// sweep run at exp and then reports the last millisecond before it.
	now := func() time.Time {
		if armed.CompareAndSwap(true, false) {
			clk.Advance(5 * time.Minute)
			evicted, _ = g.Sweep()
			return clk.Now().Add(-time.Millisecond)
		}
		return clk.Now()
	}
	g, err := New(Config{Secret: "secret", TTL: 5 * time.Minute, Now: now})
	require.NoError(t, err)

	tok, err := g.Issue()
	require.NoError(t, err)
	require.NoError(t, g.Admit(tok))

	armed.Store(true)
	err = g.Admit(tok)
	require.Equal(t, 1, evicted, "sweep must have run inside the second admission")
	require.ErrorIs(t, err, ErrInvalidOrExpired)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
	assert.Zero(t, g.Used())
}
