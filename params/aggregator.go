package params

import "time"

type AggregatorConfig struct {
	// HighConfidence is the aggregate confidence above which a verdict is final.
	HighConfidence float64

	// SampleOffsetInterval is the stride between successive prediction windows.
	SampleOffsetInterval time.Duration

	// MinimumSampleCountForSuccess: no verdict until more than this many windows have run.
	MinimumSampleCountForSuccess int

	// MaximumSampleBeforeFailure: the verdict is forced once this many windows have run.
	MaximumSampleBeforeFailure int

	// AccelerometerUpdateInterval is the requested sampling period (50 Hz).
	AccelerometerUpdateInterval time.Duration

	// WindowPadding widens each classification window when collecting its readings.
	WindowPadding time.Duration

	// DeadlineBuffer is added to the computed session deadline.
	DeadlineBuffer time.Duration
}

var DefaultAggregatorConfig = &AggregatorConfig{
	HighConfidence:               0.75,
	SampleOffsetInterval:         250 * time.Millisecond,
	MinimumSampleCountForSuccess: 8,
	MaximumSampleBeforeFailure:   15,
	AccelerometerUpdateInterval:  time.Second / 50,
	WindowPadding:                100 * time.Millisecond,
	DeadlineBuffer:               10 * time.Second,
}

// SessionDeadline is the wall-clock budget for one classification session
// whose windows each span windowDuration.
func (c *AggregatorConfig) SessionDeadline(windowDuration time.Duration) time.Duration {
	n := time.Duration(c.MaximumSampleBeforeFailure)
	return (n-1)*c.SampleOffsetInterval + n*windowDuration + c.DeadlineBuffer
}
