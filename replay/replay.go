// Package replay drives the route manager from a recorded NDJSON event log,
// one event per line, using the simulated providers.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/manager"
	"github.com/RideReport/RideRecorderApp-sub003/provider"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/stream"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/montanaflynn/stats"
	"github.com/tidwall/gjson"
)

var ErrUnknownEvent = errors.New("unknown replay event")

const (
	TypeLocations     = "locations"
	TypeVisit         = "visit"
	TypeAccelerometer = "accelerometer"
	TypeAuthorization = "authorization"
	TypeBattery       = "battery"
	TypeDeferred      = "deferred"
	TypePause         = "pause"
	TypeResume        = "resume"
	TypeStop          = "stop"
	TypeAbort         = "abort"
)

// StartupLead is how long before the first event the machine is started,
// so the first fixes are clear of the GPS shutdown grace.
var StartupLead = time.Minute

// Line is one replay event. Which fields are read depends on Type.
type Line struct {
	Type string    `json:"type"`
	Date time.Time `json:"date,omitempty"`

	Fixes    []location.Fix                    `json:"fixes,omitempty"`
	Visit    *location.Visit                   `json:"visit,omitempty"`
	Readings []prediction.AccelerometerReading `json:"readings,omitempty"`

	Authorization string     `json:"authorization,omitempty"`
	Level         *float64   `json:"level,omitempty"`
	Error         string     `json:"error,omitempty"`
	Until         *time.Time `json:"until,omitempty"`
}

type Summary struct {
	Events  int            `json:"events"`
	Skipped int            `json:"skipped"`
	ByType  map[string]int `json:"byType"`

	Opened   int `json:"opened"`
	Closed   int `json:"closed"`
	Canceled int `json:"canceled"`
	Uploaded int `json:"uploaded"`

	// Closed route lengths, meters, over the routes still closed at the end.
	LengthTotal  float64 `json:"lengthTotal"`
	LengthMean   float64 `json:"lengthMean"`
	LengthMedian float64 `json:"lengthMedian"`

	Final manager.Status `json:"final"`
}

// Replayer owns the simulated platform around one manager.
// The Clock should start at or before the first event.
type Replayer struct {
	Manager       *manager.Manager
	Store         *state.Store
	Locations     *provider.Location
	Battery       *provider.Battery
	Accelerometer *provider.Accelerometer
	Clock         *provider.Clock

	// MeterInterval logs throughput every interval; zero disables it.
	MeterInterval time.Duration

	logger *slog.Logger
}

func New(m *manager.Manager, store *state.Store, loc *provider.Location, battery *provider.Battery, acc *provider.Accelerometer, clock *provider.Clock) *Replayer {
	return &Replayer{
		Manager:       m,
		Store:         store,
		Locations:     loc,
		Battery:       battery,
		Accelerometer: acc,
		Clock:         clock,
		logger:        slog.With("d", "replay"),
	}
}

// Replay runs the manager over every event in the log, waiting for each
// to be handled before the next. The manager must not already be running.
func (r *Replayer) Replay(ctx context.Context, in io.Reader) (*Summary, error) {
	summary := &Summary{ByType: map[string]int{}}
	t := startTally(r.Manager.Feeds())
	defer t.stop(summary)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- r.Manager.Run(runCtx) }()

	meter := stream.NewTickMeter("replay", r.MeterInterval)
	defer meter.Stop()

	lines, errs := stream.NDJSON[json.RawMessage](runCtx, in)
	started := false
	for raw := range lines {
		typ := gjson.GetBytes(raw, "type").String()
		date := lineDate(raw)
		if !started {
			if !date.IsZero() {
				r.Clock.Set(date.Add(-StartupLead))
			}
			r.Manager.Start()
			if err := r.barrier(ctx); err != nil {
				return summary, err
			}
			started = true
		}
		if !date.IsZero() {
			r.Clock.Set(date)
		}
		err := r.apply(ctx, typ, raw)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			r.logger.Warn("Skipping event", "type", typ, "error", err)
			summary.Skipped++
			continue
		case errors.Is(err, manager.ErrNoRoute):
			r.logger.Debug("No route to stop", "type", typ)
		case err != nil:
			return summary, fmt.Errorf("replay %s event: %w", typ, err)
		}
		if err := r.barrier(ctx); err != nil {
			return summary, err
		}
		summary.Events++
		summary.ByType[typ]++
		meter.Mark(date, len(raw))
	}
	if err := <-errs; err != nil {
		return summary, err
	}

	final, err := r.settle(ctx)
	if err != nil {
		return summary, err
	}
	summary.Final = final
	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	t.stop(summary)
	if err := r.summarizeLengths(summary); err != nil {
		return summary, err
	}
	r.logger.Info("Replay done", "events", summary.Events, "opened", summary.Opened,
		"closed", summary.Closed, "canceled", summary.Canceled)
	return summary, nil
}

// barrier returns once every event queued so far has been handled.
func (r *Replayer) barrier(ctx context.Context) error {
	_, err := r.Manager.Status(ctx)
	return err
}

// settle waits out summary uploads still in flight and returns the last status.
func (r *Replayer) settle(ctx context.Context) (manager.Status, error) {
	for {
		st, err := r.Manager.Status(ctx)
		if err != nil || st.SummaryUploads == 0 {
			return st, err
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (r *Replayer) apply(ctx context.Context, typ string, raw []byte) error {
	var l Line
	if err := json.Unmarshal(raw, &l); err != nil {
		return err
	}
	switch typ {
	case TypeLocations:
		r.Manager.HandleLocations(l.Fixes)
	case TypeVisit:
		if l.Visit == nil {
			return fmt.Errorf("%w: visit without a visit", ErrUnknownEvent)
		}
		r.Manager.HandleVisit(*l.Visit)
	case TypeAccelerometer:
		r.Accelerometer.Push(l.Readings...)
	case TypeAuthorization:
		a := provider.ParseAuthorization(l.Authorization)
		r.Locations.SetAuthorization(a)
		r.Manager.HandleAuthorizationChanged(a)
	case TypeBattery:
		if l.Level == nil {
			return fmt.Errorf("%w: battery without a level", ErrUnknownEvent)
		}
		r.Battery.SetLevel(*l.Level)
	case TypeDeferred:
		var err error
		switch l.Error {
		case "":
		case "canceled":
			err = manager.ErrDeferredCanceled
		default:
			err = errors.New(l.Error)
		}
		r.Manager.HandleDeferredUpdateFinished(err)
	case TypePause:
		until := time.Time{}
		if l.Until != nil {
			until = *l.Until
		}
		r.Manager.PauseTracking(until)
	case TypeResume:
		r.Manager.ResumeTracking()
	case TypeStop:
		return r.Manager.StopRoute(ctx)
	case TypeAbort:
		return r.Manager.AbortRoute(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	return nil
}

// lineDate is the event's date, or else the first fix's timestamp.
func lineDate(raw []byte) time.Time {
	for _, path := range []string{"date", "fixes.0.timestamp", "visit.departureDate", "visit.arrivalDate", "readings.0.date"} {
		v := gjson.GetBytes(raw, path)
		if !v.Exists() {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err == nil && !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func (r *Replayer) summarizeLengths(s *Summary) error {
	closed, err := r.Store.Routes(func(rt *route.Route) bool { return rt.IsClosed })
	if err != nil {
		return err
	}
	if len(closed) == 0 {
		return nil
	}
	lengths := make(stats.Float64Data, 0, len(closed))
	for _, rt := range closed {
		lengths = append(lengths, rt.Length)
	}
	s.LengthTotal, _ = stats.Sum(lengths)
	s.LengthMean, _ = stats.Mean(lengths)
	s.LengthMedian, _ = stats.Median(lengths)
	return nil
}

// tally counts route lifecycle events while a replay runs.
type tally struct {
	opened, closed, canceled, uploaded chan *route.Route
	subs                               []interface{ Unsubscribe() }
	quit                               chan struct{}
	done                               chan struct{}
	counts                             [4]int
	stopOnce                           sync.Once
}

func startTally(feeds *events.Feeds) *tally {
	t := &tally{
		opened:   make(chan *route.Route, 64),
		closed:   make(chan *route.Route, 64),
		canceled: make(chan *route.Route, 64),
		uploaded: make(chan *route.Route, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.subs = append(t.subs,
		feeds.RouteOpened.Subscribe(t.opened),
		feeds.RouteClosed.Subscribe(t.closed),
		feeds.RouteCancelled.Subscribe(t.canceled),
		feeds.RouteUploaded.Subscribe(t.uploaded),
	)
	go t.run()
	return t
}

func (t *tally) run() {
	defer close(t.done)
	for {
		select {
		case <-t.opened:
			t.counts[0]++
		case <-t.closed:
			t.counts[1]++
		case <-t.canceled:
			t.counts[2]++
		case <-t.uploaded:
			t.counts[3]++
		case <-t.quit:
			return
		}
	}
}

func (t *tally) stop(s *Summary) {
	t.stopOnce.Do(func() { t.finish(s) })
}

func (t *tally) finish(s *Summary) {
	for _, sub := range t.subs {
		sub.Unsubscribe()
	}
	close(t.quit)
	<-t.done
	// Sends that completed before unsubscribing may still be buffered.
	for _, c := range []struct {
		ch <-chan *route.Route
		n  *int
	}{{t.opened, &t.counts[0]}, {t.closed, &t.counts[1]}, {t.canceled, &t.counts[2]}, {t.uploaded, &t.counts[3]}} {
		*c.n += len(c.ch)
	}
	s.Opened, s.Closed, s.Canceled, s.Uploaded = t.counts[0], t.counts[1], t.counts[2], t.counts[3]
}
