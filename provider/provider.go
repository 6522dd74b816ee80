// Package provider holds simulated platform services: the location
// service, the accelerometer, the battery and a clock. Replay and tests
// drive them in place of a device.
package provider

import (
	"strings"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/params"
)

// Authorization is the location permission granted by the user.
type Authorization int

const (
	AuthorizationNotDetermined Authorization = iota
	AuthorizationRestricted
	AuthorizationDenied
	AuthorizationWhenInUse
	AuthorizationAlways
)

func (a Authorization) String() string {
	switch a {
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationWhenInUse:
		return "whenInUse"
	case AuthorizationAlways:
		return "always"
	}
	return "notDetermined"
}

func ParseAuthorization(s string) Authorization {
	switch strings.ToLower(s) {
	case "restricted":
		return AuthorizationRestricted
	case "denied":
		return AuthorizationDenied
	case "wheninuse", "when_in_use":
		return AuthorizationWhenInUse
	case "always":
		return AuthorizationAlways
	}
	return AuthorizationNotDetermined
}

// Location is a simulated location service. It records what it was asked
// to do; fixes and visits are delivered to the manager by the caller.
type Location struct {
	mu sync.Mutex

	powerMode         params.PowerMode
	monitoring        bool
	deferring         bool
	deferralTimeout   time.Duration
	deferralAvailable bool
	authorization     Authorization
	alwaysRequests    int

	// GrantOnRequest makes RequestAlwaysAuthorization grant "always".
	GrantOnRequest bool

	// OnAuthorizationChange is called whenever the authorization changes.
	OnAuthorizationChange func(Authorization)
}

func NewLocation(auth Authorization, deferralAvailable bool) *Location {
	return &Location{
		authorization:     auth,
		deferralAvailable: deferralAvailable,
	}
}

func (p *Location) SetPowerMode(mode params.PowerMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.powerMode = mode
}

func (p *Location) PowerMode() params.PowerMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.powerMode
}

// StartMonitoring starts significant-change, visit and continuous updates.
func (p *Location) StartMonitoring() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitoring = true
}

func (p *Location) Monitoring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitoring
}

func (p *Location) AllowDeferredUpdates(timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deferring = true
	p.deferralTimeout = timeout
}

func (p *Location) DisallowDeferredUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deferring = false
}

func (p *Location) Deferring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deferring
}

func (p *Location) DeferredUpdatesAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deferralAvailable
}

func (p *Location) AuthorizationStatus() Authorization {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorization
}

func (p *Location) RequestAlwaysAuthorization() {
	p.mu.Lock()
	p.alwaysRequests++
	grant := p.GrantOnRequest
	p.mu.Unlock()
	if grant {
		p.SetAuthorization(AuthorizationAlways)
	}
}

func (p *Location) AlwaysRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alwaysRequests
}

// SetAuthorization changes the authorization and notifies OnAuthorizationChange.
func (p *Location) SetAuthorization(a Authorization) {
	p.mu.Lock()
	changed := p.authorization != a
	p.authorization = a
	fn := p.OnAuthorizationChange
	p.mu.Unlock()
	if changed && fn != nil {
		fn(a)
	}
}

// Battery is a simulated battery. A negative level means unknown.
type Battery struct {
	mu    sync.Mutex
	level float64
}

func NewBattery(level float64) *Battery {
	return &Battery{level: level}
}

func (b *Battery) BatteryLevel() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

func (b *Battery) SetLevel(level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
}

// Clock is a settable time source. Replay moves it to each event's time.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock, never backwards.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.t) {
		c.t = t
	}
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
