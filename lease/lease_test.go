package lease

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func assertBalanced(t *testing.T, m *Manager) {
	t.Helper()
	s := m.Stats()
	if s.Acquired != s.Released {
		t.Errorf("acquired %d released %d", s.Acquired, s.Released)
	}
	if len(s.Active) != 0 {
		t.Errorf("leases still active: %v", s.Active)
	}
}

func TestLease_normalPath(t *testing.T) {
	m := NewManager()
	l := m.Acquire("gps", time.Minute, func() { t.Error("should not expire") })
	if !l.Held() {
		t.Fatal("lease should be held")
	}
	if !l.Release() {
		t.Error("first release should report true")
	}
	if l.Release() {
		t.Error("second release should report false")
	}
	assertBalanced(t, m)
}

func TestLease_errorPath(t *testing.T) {
	m := NewManager()
	work := func() (err error) {
		l := m.Acquire("classify", time.Minute, nil)
		defer l.Release()
		return errors.New("sensor unavailable")
	}
	if err := work(); err == nil {
		t.Fatal("expected error")
	}
	assertBalanced(t, m)
}

func TestLease_expiryPath(t *testing.T) {
	m := NewManager()
	expired := make(chan struct{})
	l := m.Acquire("classify", 10*time.Millisecond, func() { close(expired) })
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("lease did not expire")
	}
	if l.Held() {
		t.Error("expired lease should not be held")
	}
	if l.Release() {
		t.Error("release after expiry should report false")
	}
	assertBalanced(t, m)
	if got := m.Stats().Expired; got != 1 {
		t.Errorf("have %d expired want 1", got)
	}
}

func TestLease_concurrentRelease(t *testing.T) {
	m := NewManager()
	l := m.Acquire("race", 5*time.Millisecond, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(4 * time.Millisecond)
			if l.Release() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	time.Sleep(10 * time.Millisecond)
	if wins > 1 {
		t.Errorf("have %d releasers want at most 1", wins)
	}
	assertBalanced(t, m)
}

func TestLease_nil(t *testing.T) {
	var l *Lease
	if l.Release() || l.Held() {
		t.Error("nil lease is never held")
	}
}

func TestLease_expiryRacesRelease(t *testing.T) {
	m := NewManager()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := m.Acquire("gps", time.Microsecond, nil)
			l.Release()
		}()
	}
	wg.Wait()
	s := m.Stats()
	if s.Acquired != n {
		t.Errorf("have %d acquired want %d", s.Acquired, n)
	}
	if s.Released != n || len(s.Active) != 0 {
		t.Errorf("have %d released, %d active want %d, 0", s.Released, len(s.Active), n)
	}
}
