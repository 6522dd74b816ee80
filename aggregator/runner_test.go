package aggregator

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/classifier"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

// scriptedSensor sends its readings then waits for the session to end.
type scriptedSensor struct {
	readings []prediction.AccelerometerReading
	failWith error
	startErr error
}

func (s *scriptedSensor) AccelerometerUpdates(ctx context.Context, _ time.Duration) (<-chan Sample, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	ch := make(chan Sample)
	go func() {
		defer close(ch)
		for _, r := range s.readings {
			select {
			case ch <- Sample{Reading: r}:
			case <-ctx.Done():
				return
			}
		}
		if s.failWith != nil {
			select {
			case ch <- Sample{Err: s.failWith}:
			case <-ctx.Done():
			}
			return
		}
		<-ctx.Done()
	}()
	return ch, nil
}

func steadyReadings(n int) []prediction.AccelerometerReading {
	out := make([]prediction.AccelerometerReading, n)
	for i := range out {
		out[i] = prediction.AccelerometerReading{Date: t0.Add(time.Duration(i) * 20 * time.Millisecond), Z: 1}
	}
	return out
}

type result struct {
	agg *Aggregator
	err error
}

func runOnce(t *testing.T, r *Runner, agg *Aggregator) result {
	t.Helper()
	ch := make(chan result, 1)
	r.Predict(context.Background(), agg, func(a *Aggregator, err error) {
		ch <- result{a, err}
	})
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("session never finished")
	}
	return result{}
}

func assertLeasesBalanced(t *testing.T, m *lease.Manager) {
	t.Helper()
	s := m.Stats()
	if s.Acquired != s.Released || len(s.Active) > 0 {
		t.Errorf("leases unbalanced: %+v", s)
	}
}

func TestRunner_complete(t *testing.T) {
	leases := lease.NewManager()
	c := classifier.NewTemplate(100*time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})
	r := NewRunner(c, &scriptedSensor{readings: steadyReadings(200)}, leases, nil)

	res := runOnce(t, r, New(t0))
	if res.err != nil {
		t.Fatal(res.err)
	}
	got, _ := res.agg.Aggregate()
	if got.Type != activity.Cycling || got.Confidence <= 0.75 {
		t.Errorf("unexpected verdict %v", got)
	}
	if r.InFlight() != nil {
		t.Error("session should be cleared")
	}
	assertLeasesBalanced(t, leases)
}

func TestRunner_timeout(t *testing.T) {
	leases := lease.NewManager()
	config := *params.DefaultAggregatorConfig
	config.SampleOffsetInterval = time.Millisecond
	config.DeadlineBuffer = 10 * time.Millisecond
	c := classifier.NewTemplate(time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})
	r := NewRunner(c, &scriptedSensor{}, leases, &config)

	res := runOnce(t, r, New(t0))
	if !errors.Is(res.err, ErrSessionTimeout) {
		t.Errorf("have %v want %v", res.err, ErrSessionTimeout)
	}
	if res.agg.Activity() != activity.Unknown {
		t.Errorf("timed out session should be unknown, have %v", res.agg.Activity())
	}
	assertLeasesBalanced(t, leases)
}

func TestRunner_sensorError(t *testing.T) {
	leases := lease.NewManager()
	c := classifier.NewTemplate(100*time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})
	sensorErr := errors.New("accelerometer unavailable")

	r := NewRunner(c, &scriptedSensor{readings: steadyReadings(3), failWith: sensorErr}, leases, nil)
	res := runOnce(t, r, New(t0))
	if !errors.Is(res.err, sensorErr) || res.agg.Activity() != activity.Unknown {
		t.Errorf("have %v %v", res.err, res.agg.Activity())
	}

	r = NewRunner(c, &scriptedSensor{startErr: sensorErr}, leases, nil)
	res = runOnce(t, r, New(t0))
	if !errors.Is(res.err, sensorErr) {
		t.Errorf("have %v want %v", res.err, sensorErr)
	}
	assertLeasesBalanced(t, leases)
}

func TestRunner_busyAndNotReady(t *testing.T) {
	leases := lease.NewManager()
	c := classifier.NewTemplate(100*time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})
	r := NewRunner(c, &scriptedSensor{}, leases, nil)

	first := make(chan result, 1)
	r.Predict(context.Background(), New(t0), func(a *Aggregator, err error) { first <- result{a, err} })

	res := runOnce(t, r, New(t0))
	if !errors.Is(res.err, ErrBusy) || res.agg.Activity() != activity.Unknown {
		t.Errorf("have %v %v want busy unknown", res.err, res.agg.Activity())
	}

	r.Stop()
	select {
	case res := <-first:
		if !errors.Is(res.err, ErrStopped) {
			t.Errorf("have %v want %v", res.err, ErrStopped)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stopped session never finished")
	}
	r.Stop() // no session; must be harmless

	c.SetTemplates()
	res = runOnce(t, r, New(t0))
	if !errors.Is(res.err, classifier.ErrNotReady) {
		t.Errorf("have %v want %v", res.err, classifier.ErrNotReady)
	}
	assertLeasesBalanced(t, leases)
}

func TestRunner_predictWhileStopping(t *testing.T) {
	leases := lease.NewManager()
	c := classifier.NewTemplate(100*time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})
	r := NewRunner(c, &scriptedSensor{}, leases, nil)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-quit:
				return
			default:
				r.Stop()
				runtime.Gosched()
			}
		}
	}()

	const n = 50
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		r.Predict(context.Background(), New(t0), func(a *Aggregator, err error) {
			results <- result{a, err}
		})
	}
	close(quit)
	wg.Wait()
	r.Stop()

	for i := 0; i < n; i++ {
		select {
		case res := <-results:
			if res.err == nil {
				t.Errorf("session %d finished without readings", i)
			}
			if res.agg.Activity() != activity.Unknown {
				t.Errorf("session %d: have %v want unknown", i, res.agg.Activity())
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d sessions finished", i, n)
		}
	}
	if r.InFlight() != nil {
		t.Error("session should be cleared")
	}
	assertLeasesBalanced(t, leases)
}

func TestTemplatePredictor(t *testing.T) {
	tp := NewTemplatePredictor(classifier.NewTemplate(time.Second,
		prediction.PredictedActivity{Type: activity.Walking, Confidence: 0.8}), nil)
	called := 0
	tp.Predict(context.Background(), New(t0), func(a *Aggregator, err error) {
		called++
		if err != nil || a.Activity() != activity.Walking {
			t.Errorf("have %v %v", a.Activity(), err)
		}
	})
	if called != 1 {
		t.Errorf("done called %d times", called)
	}
}
