package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/classifier"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

var (
	// ErrBusy is returned when a session is already in flight.
	ErrBusy = errors.New("classification session already in flight")

	// ErrSessionTimeout is returned when a session overruns its deadline.
	ErrSessionTimeout = errors.New("classification session timed out")

	// ErrSensorStopped is returned when the accelerometer stops delivering.
	ErrSensorStopped = errors.New("accelerometer updates stopped")

	// ErrStopped is returned when a session is stopped by its owner.
	ErrStopped = errors.New("classification session stopped")
)

// Sample is one accelerometer delivery; Err reports a sensor failure.
type Sample struct {
	Reading prediction.AccelerometerReading
	Err     error
}

// AccelerometerProvider delivers samples at the requested interval until ctx
// is done, then closes the channel.
type AccelerometerProvider interface {
	AccelerometerUpdates(ctx context.Context, interval time.Duration) (<-chan Sample, error)
}

// DoneFunc receives a finished aggregator. A non-nil error means the
// verdict was forced to unknown.
type DoneFunc func(agg *Aggregator, err error)

// Predictor runs classification sessions.
// Predict must not block, and must call done exactly once per call.
type Predictor interface {
	Predict(ctx context.Context, agg *Aggregator, done DoneFunc)

	// Stop ends any session in flight. It is safe to call at any time.
	Stop()
}

// Runner is the sensor-backed Predictor. At most one session runs at a time.
type Runner struct {
	classifier classifier.Classifier
	sensor     AccelerometerProvider
	leases     *lease.Manager
	config     *params.AggregatorConfig
	logger     *slog.Logger

	mu       sync.Mutex
	inFlight *Aggregator
	cancel   context.CancelCauseFunc
}

func NewRunner(c classifier.Classifier, sensor AccelerometerProvider, leases *lease.Manager, config *params.AggregatorConfig) *Runner {
	if config == nil {
		config = params.DefaultAggregatorConfig
	}
	if leases == nil {
		leases = lease.NewManager()
	}
	return &Runner{
		classifier: c,
		sensor:     sensor,
		leases:     leases,
		config:     config,
		logger:     slog.With("d", "classify"),
	}
}

// Deadline is the wall-clock budget of one session.
func (r *Runner) Deadline() time.Duration {
	return r.config.SessionDeadline(r.classifier.DesiredSessionDuration())
}

// InFlight returns the aggregator of the running session, if any.
func (r *Runner) InFlight() *Aggregator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *Runner) Predict(ctx context.Context, agg *Aggregator, done DoneFunc) {
	if !r.classifier.CanPredict() {
		r.logger.Info("Classifier was not ready")
		agg.ForceUnknown()
		go done(agg, classifier.ErrNotReady)
		return
	}

	r.mu.Lock()
	if r.inFlight != nil {
		cur := r.inFlight.ID
		r.mu.Unlock()
		r.logger.Info("Could not classify, session already in flight", "current", cur, "rejected", agg.ID)
		agg.ForceUnknown()
		go done(agg, ErrBusy)
		return
	}
	deadline := r.Deadline()
	sctx, cancel := context.WithCancelCause(ctx)
	r.inFlight = agg
	r.cancel = cancel
	r.mu.Unlock()

	l := r.leases.Acquire("classify", deadline+r.config.DeadlineBuffer, func() {
		cancel(ErrSessionTimeout)
	})
	agg.StartWindow(time.Time{})

	go r.session(sctx, deadline, agg, l, done)
}

func (r *Runner) session(ctx context.Context, deadline time.Duration, agg *Aggregator, l *lease.Lease, done DoneFunc) {
	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			if err != nil {
				agg.ForceUnknown()
			}
			r.mu.Lock()
			if r.cancel != nil {
				r.cancel(nil)
			}
			r.inFlight, r.cancel = nil, nil
			r.mu.Unlock()
			l.Release()
			done(agg, err)
		})
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	samples, err := r.sensor.AccelerometerUpdates(ctx, r.config.AccelerometerUpdateInterval)
	if err != nil {
		r.logger.Warn("Could not start accelerometer updates", "error", err)
		finish(err)
		return
	}

	for {
		select {
		case <-timer.C:
			r.logger.Warn("Classification deadline expired", "aggregator", agg.ID, "deadline", deadline)
			finish(ErrSessionTimeout)
			return
		case <-ctx.Done():
			cause := context.Cause(ctx)
			if cause == nil || errors.Is(cause, context.Canceled) {
				cause = ErrStopped
			}
			finish(cause)
			return
		case s, ok := <-samples:
			if !ok {
				finish(ErrSensorStopped)
				return
			}
			if s.Err != nil {
				r.logger.Info("Error reading accelerometer data, ending early", "error", s.Err)
				finish(s.Err)
				return
			}
			agg.AddReading(s.Reading)
			if agg.RunWindowIfReady(r.classifier, r.config) {
				p, _ := agg.Aggregate()
				r.logger.Info("Classification complete", "aggregator", agg.ID, "verdict", p,
					"windows", len(agg.Predictions()))
				finish(nil)
				return
			}
		}
	}
}

// Stop ends the session in flight, if any, with an unknown verdict.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel(ErrStopped)
	}
}

// TemplatePredictor completes every session immediately with the next
// scripted classification. It does not read sensors.
type TemplatePredictor struct {
	Template *classifier.Template
	config   *params.AggregatorConfig
}

func NewTemplatePredictor(t *classifier.Template, config *params.AggregatorConfig) *TemplatePredictor {
	if config == nil {
		config = params.DefaultAggregatorConfig
	}
	return &TemplatePredictor{Template: t, config: config}
}

// Predict calls done before returning.
func (p *TemplatePredictor) Predict(_ context.Context, agg *Aggregator, done DoneFunc) {
	next, ok := p.Template.Next()
	if !ok {
		agg.ForceUnknown()
		done(agg, classifier.ErrNotReady)
		return
	}
	start := time.Time{}
	if first := agg.FirstLocation(); first != nil {
		start = first.Date
	}
	pr := prediction.New(start)
	pr.ModelIdentifier = p.Template.ModelIdentifier()
	pr.Activities = []prediction.PredictedActivity{next}
	agg.AddPrediction(pr)
	done(agg, nil)
}

func (p *TemplatePredictor) Stop() {}
