package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
)

// TickMeter counts items passing through a pipeline
// and logs throughput on every tick.
type TickMeter struct {
	name     string
	interval time.Duration
	started  time.Time

	mu    sync.Mutex
	label time.Time // any value, eg. the last event's date

	ticker     *time.Ticker
	done       chan struct{}
	stopOnce   sync.Once
	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
}

func NewTickMeter(name string, interval time.Duration) *TickMeter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	tm := &TickMeter{
		name:       name,
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
	}
	if err := reg.Register(name+".count", tm.count); err != nil {
		panic(err)
	}
	if err := reg.Register(name+".size", tm.size); err != nil {
		panic(err)
	}
	if err := reg.Register(name+".meter", tm.countMeter); err != nil {
		panic(err)
	}
	if interval > 0 {
		tm.ticker = time.NewTicker(interval)
		go tm.run()
	}
	return tm
}

func (tm *TickMeter) Mark(label time.Time, nbytes int) {
	tm.mu.Lock()
	tm.label = label
	tm.mu.Unlock()
	tm.count.Inc(1)
	tm.size.Inc(int64(nbytes))
	tm.countMeter.Mark(1)
}

func (tm *TickMeter) Count() int64 {
	return tm.count.Snapshot().Count()
}

func (tm *TickMeter) Registry() metrics.Registry {
	return tm.reg
}

func (tm *TickMeter) run() {
	for {
		select {
		case <-tm.done:
			return
		case <-tm.ticker.C:
			tm.Log()
		}
	}
}

func (tm *TickMeter) Log() {
	snap := tm.countMeter.Snapshot()
	tm.mu.Lock()
	label := tm.label
	tm.mu.Unlock()
	slog.Info("Meter", "name", tm.name,
		"n", humanize.Comma(snap.Count()),
		"last", label.Format(time.DateTime),
		"rate", common.RoundDecimal(snap.Rate1(), 0).String(),
		"bytes", humanize.Bytes(uint64(tm.size.Snapshot().Count())),
		"running", time.Since(tm.started).Round(time.Second))
}

func (tm *TickMeter) Stop() {
	if tm == nil {
		return
	}
	tm.stopOnce.Do(func() {
		if tm.ticker != nil {
			tm.ticker.Stop()
		}
		close(tm.done)
		tm.countMeter.Stop()
	})
}
