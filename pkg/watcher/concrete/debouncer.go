package concrete

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/butter-bot-machines/slskconf/pkg/watcher"
)

// debouncerImpl implements watcher.Debouncer. Each key runs its latest
// callback once no event arrived for delay, and at the latest maxDelay
// after the first event of a burst.
type debouncerImpl struct {
	delay    time.Duration
	maxDelay time.Duration
	timers   map[string]*timerCtx
	mu       sync.Mutex
	done     chan struct{}
	clock    clock.Clock
	running  sync.WaitGroup
}

type timerCtx struct {
	timer      *clock.Timer
	firstEvent time.Time
	fn         func()
}

// newDebouncer creates a new debouncer
func newDebouncer(delay, maxDelay time.Duration, clk clock.Clock) watcher.Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &debouncerImpl{
		delay:    delay,
		maxDelay: maxDelay,
		timers:   make(map[string]*timerCtx),
		done:     make(chan struct{}),
		clock:    clk,
	}
}

// Debounce delays execution of fn until events settle
func (d *debouncerImpl) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return
	default:
	}

	now := d.clock.Now()
	ctx, ok := d.timers[key]
	if !ok {
		ctx = &timerCtx{firstEvent: now}
		d.timers[key] = ctx
	}
	if ctx.timer != nil {
		ctx.timer.Stop()
	}
	ctx.fn = fn

	wait := d.delay
	if d.maxDelay > 0 {
		if left := ctx.firstEvent.Add(d.maxDelay).Sub(now); left < wait {
			wait = left
		}
	}
	if wait < 0 {
		wait = 0
	}

	ctx.timer = d.clock.AfterFunc(wait, func() {
		d.mu.Lock()
		select {
		case <-d.done:
			d.mu.Unlock()
			return
		default:
		}
		if d.timers[key] != ctx {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		run := ctx.fn
		d.running.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.running.Done()
			run()
		}()
	})
}

// Stop cancels pending calls and waits for running ones. It must not be
// called from a callback.
func (d *debouncerImpl) Stop() {
	d.mu.Lock()
	select {
	case <-d.done:
		d.mu.Unlock()
		return
	default:
		close(d.done)
	}

	for _, ctx := range d.timers {
		if ctx.timer != nil {
			ctx.timer.Stop()
		}
	}
	d.timers = nil
	d.mu.Unlock()

	d.running.Wait()
}
