package guard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweep forgets every used token whose expiry has passed. At most one sweep
// runs at a time; a call made while another is in progress returns
// ran == false without doing anything.
func (g *Guard) Sweep() (evicted int, ran bool) {
	if !g.sweeping.CompareAndSwap(false, true) {
		g.metrics.sweepSkipped()
		return 0, false
	}
	defer g.sweeping.Store(false)

	start := time.Now()
	g.mu.Lock()
	// The cut-off is taken under the same lock consume decides under, so an
	// eviction is always visible to a later admission as expiry.
	now, ok := g.sweepTime()
	before := len(g.used)
	for tok, exp := range g.used {
		if !ok || !exp.After(now) {
			delete(g.used, tok)
		}
	}
	remaining := len(g.used)
	g.mu.Unlock()
	evicted = before - remaining

	g.metrics.swept(evicted, remaining)
	g.log.Debug("used token sweep",
		zap.Int("evicted", evicted),
		zap.Int("remaining", remaining),
		zap.Duration("took", time.Since(start)),
	)
	return evicted, true
}

// sweepTime treats a failing clock, including a panic, as one past every
// expiry.
func (g *Guard) sweepTime() (now time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Warn("sweep: clock panicked", zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()
	return g.now(), true
}

// Start schedules the sweep every SweepInterval. Calling Start on a running
// guard does nothing.
func (g *Guard) Start() {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx, g.done)
	g.log.Info("token sweeper started", zap.Duration("interval", g.interval))
}

// Stop cancels the schedule and waits for an in-flight sweep to finish, so
// no sweep fires after it returns.
func (g *Guard) Stop() {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
	g.cancel, g.done = nil, nil
	g.log.Info("token sweeper stopped")
}

func (g *Guard) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(g.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			g.Sweep()
		}
	}
}
