// Package manager is the route state machine. It decides when a trip
// starts, which mode it is, when to switch to GPS, and when the trip ends.
//
// All state is owned by the goroutine running Run. Platform callbacks are
// translated into events and queued; classification completions come back
// the same way.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/catdb/cache"
	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/provider"
	"github.com/RideReport/RideRecorderApp-sub003/recorder"
	"github.com/RideReport/RideRecorderApp-sub003/stream"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

var (
	// ErrDeferredCanceled is the routine end of a deferral period.
	ErrDeferredCanceled = errors.New("deferred updates canceled")

	ErrNoRoute = errors.New("no route in progress")
)

// LocationProvider is the platform location service.
type LocationProvider interface {
	SetPowerMode(mode params.PowerMode)
	StartMonitoring()
	AllowDeferredUpdates(timeout time.Duration)
	DisallowDeferredUpdates()
	DeferredUpdatesAvailable() bool
	AuthorizationStatus() provider.Authorization
	RequestAlwaysAuthorization()
}

// BatteryMonitor reports the battery level in 0..1, or negative when unknown.
type BatteryMonitor interface {
	BatteryLevel() float64
}

type Manager struct {
	recorder  *recorder.Recorder
	locations LocationProvider
	battery   BatteryMonitor
	predictor aggregator.Predictor
	leases    *lease.Manager
	config    *params.RouteManagerConfig
	aggConfig *params.AggregatorConfig
	now       func() time.Time
	logger    *slog.Logger

	ctx      context.Context
	events   chan Event
	internal chan Event

	dedupe   *cache.FixDedupe
	modes    *activity.ModeTracker
	verdicts *stream.RingBuffer[Verdict]

	currentRoute       *route.Route
	currentAggregator  *aggregator.Aggregator
	pendingAggregators []*aggregator.Aggregator

	usingGPS   bool
	deferring  bool
	stoppedGPS time.Time

	// sufficient is the latest accurate fix fast enough to keep a route going.
	sufficient *location.Fix
	lastGPS    *location.Fix

	walkingStart time.Time
	nonMoving    int

	locationLease *lease.Lease

	// uploadsInFlight counts summary uploads whose result has not been
	// handled yet. Only the Run goroutine touches it.
	uploadsInFlight int
	uploading       sync.WaitGroup
}

func New(rec *recorder.Recorder, locations LocationProvider, battery BatteryMonitor, predictor aggregator.Predictor, config *params.RouteManagerConfig) *Manager {
	if config == nil {
		config = params.DefaultRouteManagerConfig
	}
	return &Manager{
		recorder:  rec,
		locations: locations,
		battery:   battery,
		predictor: predictor,
		leases:    lease.NewManager(),
		config:    config,
		aggConfig: params.DefaultAggregatorConfig,
		now:       time.Now,
		logger:    slog.With("d", "manager"),
		ctx:       context.Background(),
		events:    make(chan Event, config.EventQueueSize),
		internal:  make(chan Event, 16),
		dedupe:    cache.NewFixDedupe(params.CacheFixDedupeSize),
		modes:     activity.NewModeTracker(config.ModeWindow),
		verdicts:  stream.NewRingBuffer[Verdict](config.RecentVerdicts),
	}
}

// SetClock replaces the time source of the manager and its recorder.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.recorder.SetClock(now)
}

// SetLeases shares a lease manager, eg. with the classification runner.
func (m *Manager) SetLeases(l *lease.Manager) {
	m.leases = l
}

// SetAggregatorConfig sets the confidence threshold source.
func (m *Manager) SetAggregatorConfig(c *params.AggregatorConfig) {
	if c != nil {
		m.aggConfig = c
	}
}

func (m *Manager) Leases() *lease.Manager {
	return m.leases
}

// Feeds are the recorder's route and pause feeds.
func (m *Manager) Feeds() *events.Feeds {
	return m.recorder.Feeds
}

// Run processes events until ctx is done. It must be called once.
func (m *Manager) Run(ctx context.Context) error {
	m.ctx = ctx
	m.logger.Info("Route manager running")
	defer m.shutdown()
	for {
		// Completions go first so queries see their effects.
		select {
		case ev := <-m.internal:
			m.handle(ev)
			continue
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.internal:
			m.handle(ev)
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Manager) shutdown() {
	m.predictor.Stop()
	m.locationLease.Release()
	m.locationLease = nil
	m.dropUnhandledUploads()
	m.logger.Info("Route manager stopped")
}

// drain handles queued completions. Tests call it after handle.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.internal:
			m.handle(ev)
		default:
			return
		}
	}
}

func (m *Manager) enqueue(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("Event queue full, delivering late", "event", fmt.Sprintf("%T", ev))
		go func() { m.events <- ev }()
	}
}

func (m *Manager) handle(ev Event) {
	switch ev := ev.(type) {
	case startupEvent:
		m.startup()
	case LocationsEvent:
		m.didUpdateLocations(ev.Fixes)
	case VisitEvent:
		m.didVisit(ev.Visit)
	case DeferredUpdateFinished:
		m.didFinishDeferredUpdates(ev.Err)
	case AuthorizationChanged:
		m.didChangeAuthorization(ev.Status)
	case pauseRequest:
		m.pauseTracking(ev.until)
	case resumeRequest:
		m.resumeTracking()
	case stopRequest:
		ev.reply <- m.stopGPSRouteAndEnterBackgroundState(ev.abort, !ev.abort)
	case statusQuery:
		ev.reply <- m.status()
	case predictionFinished:
		m.predictionFinished(ev.agg, ev.err)
	case uploadFinished:
		m.summaryUploadFinished(ev)
	default:
		m.logger.Error("Unhandled event", "event", fmt.Sprintf("%T", ev))
	}
}

// Start requests authorization if needed, starts monitoring, and sweeps
// routes left open by a previous run.
func (m *Manager) Start() {
	m.enqueue(startupEvent{})
}

func (m *Manager) HandleLocations(fixes []location.Fix) {
	m.enqueue(LocationsEvent{Fixes: fixes})
}

func (m *Manager) HandleVisit(v location.Visit) {
	m.enqueue(VisitEvent{Visit: v})
}

// HandleDeferredUpdateFinished reports the end of a deferral period.
// A nil error or ErrDeferredCanceled is routine.
func (m *Manager) HandleDeferredUpdateFinished(err error) {
	m.enqueue(DeferredUpdateFinished{Err: err})
}

func (m *Manager) HandleAuthorizationChanged(a provider.Authorization) {
	m.enqueue(AuthorizationChanged{Status: a})
}

// PauseTracking pauses until the given time, or indefinitely if zero.
func (m *Manager) PauseTracking(until time.Time) {
	m.enqueue(pauseRequest{until: until})
}

func (m *Manager) ResumeTracking() {
	m.enqueue(resumeRequest{})
}

// StopRoute ends the current route as stopped by the user. It will not be resumed.
func (m *Manager) StopRoute(ctx context.Context) error {
	return m.requestStop(ctx, false)
}

// AbortRoute discards the current route.
func (m *Manager) AbortRoute(ctx context.Context) error {
	return m.requestStop(ctx, true)
}

func (m *Manager) requestStop(ctx context.Context, abort bool) error {
	reply := make(chan error, 1)
	m.enqueue(stopRequest{abort: abort, reply: reply})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-reply:
		return err
	}
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	m.enqueue(statusQuery{reply: reply})
	select {
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case s := <-reply:
		return s, nil
	}
}

func (m *Manager) startup() {
	if m.locations.AuthorizationStatus() == provider.AuthorizationNotDetermined {
		m.logger.Info("Requesting always authorization")
		m.locations.RequestAlwaysAuthorization()
	} else {
		m.startTrackingMachine()
	}
	if _, _, err := m.recorder.SweepOpenRoutes(); err != nil {
		m.logger.Error("Failed to sweep open routes", "error", err)
	}
}

func (m *Manager) startTrackingMachine() {
	m.logger.Info("## Starting tracking machine")
	m.locations.StartMonitoring()
	m.enterBackgroundState()
}

func (m *Manager) enterBackgroundState() {
	m.logger.Info("## Entering background state")
	m.usingGPS = false
	m.sufficient, m.lastGPS = nil, nil
	m.locations.SetPowerMode(m.config.BackgroundPowerMode)
	m.locations.DisallowDeferredUpdates()
	m.deferring = false
	m.stoppedGPS = m.now()
	if m.locationLease.Release() {
		m.logger.Debug("Released location lease")
	}
	m.locationLease = nil
}

func (m *Manager) startLocationTrackingUsingGPS() {
	if m.usingGPS {
		return
	}
	m.logger.Info("## Starting GPS tracking")
	m.usingGPS = true
	m.locations.SetPowerMode(m.config.ActiveGPSPowerMode)
	if !m.locationLease.Held() {
		m.acquireLocationLease()
	}
}

func (m *Manager) acquireLocationLease() {
	m.locationLease = m.leases.Acquire("location", m.config.LocationLeaseTTL, func() {
		m.logger.Info("Location lease expired")
	})
}

// renewLocationLease restarts the location lease after an update batch,
// but only while GPS is in use.
func (m *Manager) renewLocationLease() {
	m.locationLease.Release()
	m.locationLease = nil
	if m.usingGPS {
		m.acquireLocationLease()
	}
}

// stopGPSRouteAndEnterBackgroundState ends the current route, if any,
// and always leaves the machine in the background state.
func (m *Manager) stopGPSRouteAndEnterBackgroundState(abort, stoppedManually bool) error {
	defer m.enterBackgroundState()

	rt := m.currentRoute
	if rt == nil {
		return ErrNoRoute
	}
	m.currentRoute = nil
	m.logger.Info("## Stopping route", "id", rt.ID, "abort", abort, "manual", stoppedManually,
		"locations", rt.LocationCount())

	m.walkingStart = time.Time{}
	m.nonMoving = 0

	if abort || rt.LocationCount() <= m.config.MaximumLocationsToCancelOnStop {
		return m.recorder.CancelRoute(rt)
	}

	// Held until the summary upload, and its one conflict retry, is handled.
	l := m.leases.Acquire("stop-route", 2*m.recorder.UploadConfig().Timeout+m.config.LocationLeaseTTL, nil)

	if stoppedManually {
		rt.WasStoppedManually = true
	}
	if s := rt.AverageMovingSpeed(m.recorder.RouteConfig()); s > 0 && s < m.config.WalkingReclassificationSpeed {
		m.logger.Info("Reclassifying slow route as walking", "id", rt.ID, "averageMovingSpeed", s)
		rt.Activity = activity.Walking
	}
	closed, err := m.recorder.CloseRoute(rt)
	if err != nil || !closed {
		l.Release()
		return err
	}
	m.startSummaryUpload(rt, 0, l)
	return nil
}

func (m *Manager) mostRecentRoute() *route.Route {
	rt, err := m.recorder.Store.MostRecentRoute()
	if err != nil {
		return nil
	}
	return rt
}

func (m *Manager) didFinishDeferredUpdates(err error) {
	m.deferring = false
	if err != nil && !errors.Is(err, ErrDeferredCanceled) {
		m.logger.Debug("Error deferring updates", "error", err)
		return
	}
	m.beginDeferringUpdatesIfAppropriate()
}

func (m *Manager) beginDeferringUpdatesIfAppropriate() {
	if m.locations.DeferredUpdatesAvailable() && !m.deferring {
		m.logger.Debug("Deferring updates")
		m.deferring = true
		m.locations.AllowDeferredUpdates(m.config.IntervalForLocationTrackingDeferral)
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
