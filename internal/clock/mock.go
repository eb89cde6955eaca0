package clock

import (
	"sync"
	"time"
)

// Mock is a manually advanced Clock for tests. Tickers fire when Advance
// moves the mock time past their next deadline.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
	waiters []*mockWaiter
}

// NewMock creates a Mock clock starting at the given time.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the current mock time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker creates a ticker driven by Advance.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTicker{
		mu:       &m.mu,
		ch:       make(chan time.Time, 64),
		interval: d,
		next:     m.now.Add(d),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// After returns a channel that receives once the mock time advances past d.
func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &mockWaiter{
		ch:       make(chan time.Time, 1),
		deadline: m.now.Add(d),
	}
	if d <= 0 {
		w.ch <- m.now
	} else {
		m.waiters = append(m.waiters, w)
	}
	return w.ch
}

// Advance moves the mock time forward, firing any tickers and waiters whose
// deadlines are reached. Ticks are delivered in chronological order.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.now.Add(d)

	for {
		var earliest *mockTicker
		for _, t := range m.tickers {
			if t.stopped {
				continue
			}
			if !t.next.After(target) && (earliest == nil || t.next.Before(earliest.next)) {
				earliest = t
			}
		}
		if earliest == nil {
			break
		}

		m.now = earliest.next
		select {
		case earliest.ch <- earliest.next:
		default:
		}
		earliest.next = earliest.next.Add(earliest.interval)
	}

	m.now = target

	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(target) {
			w.ch <- target
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
}

type mockTicker struct {
	// mu is the owning Mock's mutex; stopped is read by Advance under it.
	mu       *sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *mockTicker) C() <-chan time.Time {
	return t.ch
}

func (t *mockTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

type mockWaiter struct {
	ch       chan time.Time
	deadline time.Time
}
