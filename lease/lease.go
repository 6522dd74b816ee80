// Package lease models time-limited allowances to keep doing background work.
// Every acquired lease is released exactly once, either by its holder or by
// expiry.
package lease

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

type Manager struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Lease

	registry metrics.Registry
	acquired metrics.Counter
	released metrics.Counter
	expired  metrics.Counter

	logger *slog.Logger
}

func NewManager() *Manager {
	// Counters are no-ops unless the metrics package is enabled.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	m := &Manager{
		active:   map[uint64]*Lease{},
		registry: reg,
		acquired: metrics.NewCounter(),
		released: metrics.NewCounter(),
		expired:  metrics.NewCounter(),
		logger:   slog.With("d", "lease"),
	}
	for name, c := range map[string]metrics.Counter{
		"lease.acquired": m.acquired,
		"lease.released": m.released,
		"lease.expired":  m.expired,
	} {
		if err := reg.Register(name, c); err != nil {
			panic(err)
		}
	}
	return m
}

// Lease is held until Release is called or its TTL passes.
// A nil *Lease is valid and releasing it does nothing.
type Lease struct {
	id         uint64
	Name       string
	AcquiredAt time.Time

	m        *Manager
	timer    *time.Timer // guarded by m.mu
	once     sync.Once
	released atomic.Bool
}

// Acquire grants a lease. If ttl is positive and the lease is still held
// when it passes, the lease is released and onExpire (if any) is called.
func (m *Manager) Acquire(name string, ttl time.Duration, onExpire func()) *Lease {
	m.mu.Lock()
	m.nextID++
	l := &Lease{id: m.nextID, Name: name, AcquiredAt: time.Now(), m: m}
	m.active[l.id] = l
	if ttl > 0 {
		l.timer = time.AfterFunc(ttl, func() {
			if l.release(true) {
				m.logger.Warn("Lease expired", "name", name, "id", l.id)
				if onExpire != nil {
					onExpire()
				}
			}
		})
	}
	m.mu.Unlock()

	m.acquired.Inc(1)
	m.logger.Debug("Acquired lease", "name", name, "id", l.id, "ttl", ttl)
	return l
}

// Release ends the lease. It reports whether this call did the releasing.
func (l *Lease) Release() bool {
	if l == nil {
		return false
	}
	return l.release(false)
}

// Held reports whether the lease has not yet been released.
func (l *Lease) Held() bool {
	return l != nil && !l.released.Load()
}

func (l *Lease) String() string {
	if l == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", l.Name, l.id)
}

func (l *Lease) release(expired bool) (did bool) {
	l.once.Do(func() {
		did = true
		l.released.Store(true)
		l.m.mu.Lock()
		timer := l.timer
		delete(l.m.active, l.id)
		l.m.mu.Unlock()
		if timer != nil && !expired {
			timer.Stop()
		}

		l.m.released.Inc(1)
		if expired {
			l.m.expired.Inc(1)
		}
		l.m.logger.Debug("Released lease", "name", l.Name, "id", l.id, "held", time.Since(l.AcquiredAt).Round(time.Millisecond))
	})
	return did
}

type Stats struct {
	Acquired int64    `json:"acquired"`
	Released int64    `json:"released"`
	Expired  int64    `json:"expired"`
	Active   []string `json:"active"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make([]string, 0, len(m.active))
	for _, l := range m.active {
		active = append(active, l.String())
	}
	return Stats{
		Acquired: m.acquired.Snapshot().Count(),
		Released: m.released.Snapshot().Count(),
		Expired:  m.expired.Snapshot().Count(),
		Active:   active,
	}
}

// Registry exposes the lease counters for export.
func (m *Manager) Registry() metrics.Registry {
	return m.registry
}
