package provider

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

var ErrAccelerometerBusy = errors.New("accelerometer already has a subscriber")

// DefaultAccelerometerCapacity is about a minute of readings at 50 Hz.
const DefaultAccelerometerCapacity = 3000

// Accelerometer is a simulated accelerometer. Pushed readings queue until
// a subscriber takes them; the oldest are dropped past Capacity.
type Accelerometer struct {
	Capacity int

	mu         sync.Mutex
	queue      []aggregator.Sample
	notify     chan struct{}
	subscribed bool
}

func NewAccelerometer() *Accelerometer {
	return &Accelerometer{
		Capacity: DefaultAccelerometerCapacity,
		notify:   make(chan struct{}, 1),
	}
}

func (a *Accelerometer) Push(readings ...prediction.AccelerometerReading) {
	a.mu.Lock()
	for _, r := range readings {
		a.queue = append(a.queue, aggregator.Sample{Reading: r})
	}
	if a.Capacity > 0 && len(a.queue) > a.Capacity {
		a.queue = a.queue[len(a.queue)-a.Capacity:]
	}
	a.mu.Unlock()
	a.wake()
}

// Fail delivers a sensor error to the subscriber.
func (a *Accelerometer) Fail(err error) {
	a.mu.Lock()
	a.queue = append(a.queue, aggregator.Sample{Err: err})
	a.mu.Unlock()
	a.wake()
}

// Queued is the number of samples waiting for a subscriber.
func (a *Accelerometer) Queued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *Accelerometer) wake() {
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// AccelerometerUpdates delivers queued and future samples until ctx is done.
// The interval is ignored; readings carry their own dates.
func (a *Accelerometer) AccelerometerUpdates(ctx context.Context, _ time.Duration) (<-chan aggregator.Sample, error) {
	a.mu.Lock()
	if a.subscribed {
		a.mu.Unlock()
		return nil, ErrAccelerometerBusy
	}
	a.subscribed = true
	a.mu.Unlock()

	out := make(chan aggregator.Sample, 64)
	go func() {
		defer func() {
			a.mu.Lock()
			a.subscribed = false
			a.mu.Unlock()
			close(out)
		}()
		for {
			a.mu.Lock()
			batch := a.queue
			a.queue = nil
			a.mu.Unlock()
			for i, s := range batch {
				select {
				case out <- s:
				case <-ctx.Done():
					a.requeue(batch[i:])
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-a.notify:
			}
		}
	}()
	return out, nil
}

// requeue puts undelivered samples back in front of any pushed meanwhile.
func (a *Accelerometer) requeue(rest []aggregator.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(append([]aggregator.Sample{}, rest...), a.queue...)
}

// Oscillation synthesizes n readings starting at start, spaced by interval,
// with a vertical sine of the given amplitude (g) and frequency (Hz) on
// top of gravity.
func Oscillation(start time.Time, n int, interval time.Duration, amplitude, hz float64) []prediction.AccelerometerReading {
	out := make([]prediction.AccelerometerReading, n)
	for i := range out {
		t := time.Duration(i) * interval
		out[i] = prediction.AccelerometerReading{
			Date: start.Add(t),
			X:    0.05 * math.Sin(2*math.Pi*hz*t.Seconds()/3),
			Y:    0.05 * math.Cos(2*math.Pi*hz*t.Seconds()/5),
			Z:    1 + amplitude*math.Sin(2*math.Pi*hz*t.Seconds()),
		}
	}
	return out
}
