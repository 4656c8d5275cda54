package proctor

import (
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
)

// DefaultMaxViolations is the count at which an attempt is force-submitted.
const DefaultMaxViolations = 2

// Debouncer accepts at most one event per window.
type Debouncer struct {
	window time.Duration
	last   time.Time
	armed  bool
}

// NewDebouncer creates a Debouncer. A zero window only collapses events with
// identical timestamps.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Allow reports whether an event at now falls outside the current window,
// and if so opens a new window starting at now.
func (d *Debouncer) Allow(now time.Time) bool {
	if d.armed && now.Sub(d.last) <= d.window {
		return false
	}
	d.last = now
	d.armed = true
	return true
}

// Verdict is the outcome of handling one violation.
type Verdict struct {
	Accepted bool
	Kind     model.ViolationKind
	Count    int
	// Escalate is true exactly once, when Count reaches the maximum.
	Escalate bool
}

// Monitor holds the violation state of one attempt.
type Monitor struct {
	max      int
	count    int
	detected bool
	lastKind model.ViolationKind
	debounce *Debouncer
}

// NewMonitor creates a Monitor escalating at max violations.
func NewMonitor(max int, window time.Duration) *Monitor {
	if max <= 0 {
		max = DefaultMaxViolations
	}
	return &Monitor{max: max, debounce: NewDebouncer(window)}
}

// Handle records a breach. It is a no-op when the attempt is not active,
// while a previous violation is still displayed, or inside the debounce
// window of the previously accepted violation.
func (m *Monitor) Handle(kind model.ViolationKind, now time.Time, active bool) Verdict {
	if !active || m.detected || m.count >= m.max {
		return Verdict{Count: m.count}
	}
	if !m.debounce.Allow(now) {
		return Verdict{Count: m.count}
	}

	m.detected = true
	m.count++
	m.lastKind = kind

	return Verdict{
		Accepted: true,
		Kind:     kind,
		Count:    m.count,
		Escalate: m.count == m.max,
	}
}

// Resume dismisses the overlay. The count is kept.
func (m *Monitor) Resume() bool {
	if !m.detected {
		return false
	}
	m.detected = false
	return true
}

func (m *Monitor) Count() int { return m.count }
func (m *Monitor) Detected() bool { return m.detected }
func (m *Monitor) LastKind() model.ViolationKind { return m.lastKind }
func (m *Monitor) Max() int { return m.max }
