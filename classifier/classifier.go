// Package classifier turns windows of accelerometer readings into
// per-activity confidences.
package classifier

import (
	"errors"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

var (
	ErrNotReady        = errors.New("classifier not ready")
	ErrTooFewReadings  = errors.New("too few accelerometer readings")
	ErrFeatureMismatch = errors.New("feature count does not match model")
)

type Classifier interface {
	// CanPredict reports whether a model is loaded and usable.
	CanPredict() bool

	// DesiredSessionDuration is the span of readings one window needs.
	DesiredSessionDuration() time.Duration

	ModelIdentifier() string

	// Classify returns confidences per activity for one window of readings.
	Classify(readings []prediction.AccelerometerReading) (map[activity.Type]float64, error)
}
