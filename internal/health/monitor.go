// Package health tracks backend reachability.
//
// Monitor is the state machine. It does no I/O and no locking; whoever owns
// it (the TUI update loop, or a Poller) decides when to probe and feeds the
// outcome back through Resolve.
package health

import "time"

// State is the connectivity state shown to the user.
type State int

const (
	StateChecking State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	}
	return "unknown"
}

// Status is replaced wholesale on every resolved probe.
type Status struct {
	State       State
	LastChecked time.Time
}

// Default poll intervals.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultRetryInterval = 10 * time.Second
)

// Monitor holds the last resolved connectivity status.
type Monitor struct {
	status Status

	issued  uint64 // sequence of the newest probe started
	applied uint64 // sequence of the newest probe resolved

	pollInterval  time.Duration
	retryInterval time.Duration
}

// NewMonitor creates a monitor in the checking state. Non-positive intervals
// fall back to the defaults.
func NewMonitor(pollInterval, retryInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Monitor{
		status:        Status{State: StateChecking},
		pollInterval:  pollInterval,
		retryInterval: retryInterval,
	}
}

// Begin records that a probe is being started and returns its sequence
// number, to be passed back to Resolve.
func (m *Monitor) Begin() uint64 {
	m.issued++
	return m.issued
}

// Resolve applies the outcome of probe seq. Outcomes older than the newest
// applied probe are ignored; Resolve reports whether the outcome was
// applied.
func (m *Monitor) Resolve(seq uint64, online bool, at time.Time) bool {
	if seq <= m.applied || seq > m.issued {
		return false
	}
	m.applied = seq

	state := StateOffline
	if online {
		state = StateOnline
	}
	m.status = Status{State: state, LastChecked: at}
	return true
}

// Status returns the last resolved status, or checking before the first
// probe resolves.
func (m *Monitor) Status() Status { return m.status }

// InFlight reports whether a probe newer than the last applied one is
// outstanding.
func (m *Monitor) InFlight() bool { return m.issued > m.applied }

// Interval returns the delay until the next scheduled probe.
func (m *Monitor) Interval() time.Duration {
	if m.status.State == StateOffline {
		return m.retryInterval
	}
	return m.pollInterval
}
