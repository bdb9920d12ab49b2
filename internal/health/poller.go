package health

import (
	"context"
	"sync"
	"time"

	"eduattend/internal/logging"
)

// Prober performs one liveness probe.
type Prober interface {
	Health(ctx context.Context) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (bool, error)

func (f ProberFunc) Health(ctx context.Context) (bool, error) { return f(ctx) }

type probeResult struct {
	seq    uint64
	online bool
	err    error
	at     time.Time
}

// Poller drives a Monitor from a timer on its own goroutine. Status may be
// read concurrently with Run.
type Poller struct {
	prober Prober
	now    func() time.Time

	mu  sync.Mutex
	mon *Monitor

	recheck chan struct{}
}

// NewPoller creates a poller over mon.
func NewPoller(prober Prober, mon *Monitor) *Poller {
	return &Poller{
		prober:  prober,
		now:     time.Now,
		mon:     mon,
		recheck: make(chan struct{}, 1),
	}
}

// Status returns the current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mon.Status()
}

// Recheck requests an immediate probe. It never blocks; requests made while
// one is already pending are coalesced.
func (p *Poller) Recheck() {
	select {
	case p.recheck <- struct{}{}:
	default:
	}
}

// Run probes immediately and then on the monitor's interval until ctx is
// cancelled. onChange is called from Run's goroutine after every resolved
// probe. The timer is re-armed from each resolved probe's new state, so a
// manual recheck resets the baseline.
func (p *Poller) Run(ctx context.Context, onChange func(Status)) error {
	results := make(chan probeResult)
	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func() {
		p.mu.Lock()
		seq := p.mon.Begin()
		p.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			online, err := p.prober.Health(ctx)
			select {
			case results <- probeResult{seq: seq, online: online, err: err, at: p.now()}:
			case <-ctx.Done():
			}
		}()
	}

	launch()
	timer := time.NewTimer(p.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			launch()
			timer.Reset(p.interval())

		case <-p.recheck:
			logging.Health("manual recheck requested")
			launch()

		case r := <-results:
			p.mu.Lock()
			applied := p.mon.Resolve(r.seq, r.online, r.at)
			status := p.mon.Status()
			next := p.mon.Interval()
			p.mu.Unlock()

			if !applied {
				logging.Get(logging.CategoryHealth).Debug("ignored stale probe %d", r.seq)
				continue
			}
			if r.err != nil {
				logging.Get(logging.CategoryHealth).Debug("probe %d failed: %v", r.seq, r.err)
			}
			logging.Get(logging.CategoryHealth).Debug("probe %d: %s, next in %v", r.seq, status.State, next)

			timer.Reset(next)
			if onChange != nil {
				onChange(status)
			}
		}
	}
}

func (p *Poller) interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mon.Interval()
}
