package prediction

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
)

// AccelerometerReading is one 3-axis sample, in g.
type AccelerometerReading struct {
	Date time.Time `json:"date"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
}

func (r AccelerometerReading) Magnitude() float64 {
	return math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
}

// PredictedActivity is one class/confidence pair.
type PredictedActivity struct {
	Type       activity.Type `json:"activityType"`
	Confidence float64       `json:"confidence"`
}

func (p PredictedActivity) String() string {
	return fmt.Sprintf("%s (%0.2f)", p.Type, p.Confidence)
}

// Prediction is one classification window.
type Prediction struct {
	StartDate       time.Time           `json:"startDate"`
	ModelIdentifier string              `json:"activityPredictionModelIdentifier,omitempty"`
	Activities      []PredictedActivity `json:"predictedActivities"`
}

func New(start time.Time) *Prediction {
	return &Prediction{StartDate: start}
}

// SetConfidences replaces the window's votes with the given classifier output,
// ordered by descending confidence.
func (p *Prediction) SetConfidences(confidences map[activity.Type]float64) {
	p.Activities = p.Activities[:0]
	for t, c := range confidences {
		p.Activities = append(p.Activities, PredictedActivity{Type: t, Confidence: c})
	}
	slices.SortFunc(p.Activities, func(a, b PredictedActivity) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return int(a.Type) - int(b.Type)
	})
}

// AddUnknown records a synthetic, fully confident unknown vote.
func (p *Prediction) AddUnknown() {
	p.Activities = append(p.Activities, PredictedActivity{Type: activity.Unknown, Confidence: 1.0})
}

// Top returns the highest confidence vote, if any.
func (p *Prediction) Top() (PredictedActivity, bool) {
	var top PredictedActivity
	ok := false
	for _, a := range p.Activities {
		if !ok || a.Confidence > top.Confidence {
			top, ok = a, true
		}
	}
	return top, ok
}

// Votes sums confidences per class over the given predictions.
func Votes(predictions []*Prediction) map[activity.Type]float64 {
	out := map[activity.Type]float64{}
	for _, p := range predictions {
		for _, a := range p.Activities {
			out[a.Type] += a.Confidence
		}
	}
	return out
}
