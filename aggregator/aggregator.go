// Package aggregator accumulates classification windows into one
// activity verdict per session.
package aggregator

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/classifier"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

// Aggregator is one classification campaign.
// It is safe for concurrent use: a session appends readings and
// predictions while the state machine attaches locations.
type Aggregator struct {
	mu sync.Mutex

	ID           conceptual.AggregatorID
	RouteID      conceptual.RouteID
	RouteUUID    string
	CreationDate time.Time
	IsUploaded   bool

	locations   []*location.Location
	readings    []prediction.AccelerometerReading
	predictions []*prediction.Prediction
	current     *prediction.Prediction
	aggregate   *prediction.PredictedActivity
}

func New(now time.Time, locs ...*location.Location) *Aggregator {
	return &Aggregator{
		ID:           conceptual.NewAggregatorID(),
		CreationDate: now,
		locations:    locs,
	}
}

func (a *Aggregator) AddLocations(locs ...*location.Location) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.locations = append(a.locations, locs...)
}

// Locations returns the buffered locations. The slice is a copy.
func (a *Aggregator) Locations() []*location.Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*location.Location, len(a.locations))
	copy(out, a.locations)
	return out
}

// TakeLocations returns the buffered locations and forgets them.
func (a *Aggregator) TakeLocations() []*location.Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.locations
	a.locations = nil
	return out
}

// FirstLocation is the earliest buffered location, or nil.
func (a *Aggregator) FirstLocation() *location.Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	var first *location.Location
	for _, l := range a.locations {
		if first == nil || l.Date.Before(first.Date) {
			first = l
		}
	}
	return first
}

func (a *Aggregator) AddReading(r prediction.AccelerometerReading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readings = append(a.readings, r)
}

func (a *Aggregator) ReadingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.readings)
}

// Predictions returns the completed windows.
func (a *Aggregator) Predictions() []*prediction.Prediction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*prediction.Prediction, len(a.predictions))
	copy(out, a.predictions)
	return out
}

// AddPrediction records a completed window and refreshes the aggregate.
func (a *Aggregator) AddPrediction(p *prediction.Prediction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.predictions = append(a.predictions, p)
	a.updateAggregate()
}

// Aggregate returns the current verdict, if any.
func (a *Aggregator) Aggregate() (prediction.PredictedActivity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.aggregate == nil {
		return prediction.PredictedActivity{}, false
	}
	return *a.aggregate, true
}

// Activity is the verdict's activity, or Unknown.
func (a *Aggregator) Activity() activity.Type {
	p, ok := a.Aggregate()
	if !ok {
		return activity.Unknown
	}
	return p.Type
}

// UpdateAggregate recomputes the verdict: the class with the highest summed
// confidence wins, with confidence sum/N over all N windows.
func (a *Aggregator) UpdateAggregate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateAggregate()
}

func (a *Aggregator) updateAggregate() {
	votes := prediction.Votes(a.predictions)
	top := prediction.PredictedActivity{}
	topVote := 0.0
	for t, v := range votes {
		if v > topVote || (v == topVote && v > 0 && t < top.Type) {
			top.Type = t
			topVote = v
		}
	}
	if len(a.predictions) > 0 {
		top.Confidence = topVote / float64(len(a.predictions))
	}
	a.aggregate = &top
}

// IsComplete applies the stopping rule: nothing is final until more than
// the minimum number of windows have run; after that a confident verdict
// or the window ceiling ends the session.
func (a *Aggregator) IsComplete(config *params.AggregatorConfig) bool {
	if config == nil {
		config = params.DefaultAggregatorConfig
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isComplete(config)
}

func (a *Aggregator) isComplete(config *params.AggregatorConfig) bool {
	n := len(a.predictions)
	if n <= config.MinimumSampleCountForSuccess {
		return false
	}
	if a.aggregate != nil && a.aggregate.Confidence > config.HighConfidence {
		return true
	}
	return n >= config.MaximumSampleBeforeFailure
}

// ForceUnknown ends the campaign with a synthetic unknown verdict.
func (a *Aggregator) ForceUnknown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := prediction.New(time.Time{})
	if a.current != nil {
		p.StartDate = a.current.StartDate
	}
	p.AddUnknown()
	a.predictions = append(a.predictions, p)
	a.current = nil
	a.aggregate = &prediction.PredictedActivity{Type: activity.Unknown, Confidence: 1.0}
}

// StartWindow begins a new current window. A zero start means
// "at the first reading".
func (a *Aggregator) StartWindow(start time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = prediction.New(start)
}

// HasCurrentWindow reports whether a window is in progress.
func (a *Aggregator) HasCurrentWindow() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// RunWindowIfReady classifies the current window once the buffered readings
// span the classifier's session duration. It reports whether the campaign is
// complete; otherwise the next window starts one sample offset later.
func (a *Aggregator) RunWindowIfReady(c classifier.Classifier, config *params.AggregatorConfig) (complete bool) {
	if config == nil {
		config = params.DefaultAggregatorConfig
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.current
	if cur == nil || len(a.readings) == 0 {
		return false
	}
	if cur.StartDate.IsZero() {
		cur.StartDate = a.readings[0].Date
	}
	first, ok := a.firstReadingAtOrAfter(cur.StartDate)
	if !ok {
		return false
	}
	last := a.readings[len(a.readings)-1]
	duration := c.DesiredSessionDuration()
	if last.Date.Sub(first.Date) < duration {
		return false
	}

	window := a.readingsBetween(first.Date, first.Date.Add(duration+config.WindowPadding))
	confidences, err := c.Classify(window)
	if err != nil {
		cur.AddUnknown()
	} else {
		cur.SetConfidences(confidences)
		cur.ModelIdentifier = c.ModelIdentifier()
	}
	a.predictions = append(a.predictions, cur)
	a.updateAggregate()

	if a.isComplete(config) {
		a.current = nil
		return true
	}
	a.current = prediction.New(cur.StartDate.Add(config.SampleOffsetInterval))
	return false
}

func (a *Aggregator) firstReadingAtOrAfter(t time.Time) (prediction.AccelerometerReading, bool) {
	for _, r := range a.readings {
		if !r.Date.Before(t) {
			return r, true
		}
	}
	return prediction.AccelerometerReading{}, false
}

func (a *Aggregator) readingsBetween(from, to time.Time) []prediction.AccelerometerReading {
	out := []prediction.AccelerometerReading{}
	for _, r := range a.readings {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out
}

type aggregatorJSON struct {
	ID                         conceptual.AggregatorID           `json:"id"`
	RouteID                    conceptual.RouteID                `json:"routeID,omitempty"`
	RouteUUID                  string                            `json:"routeUUID,omitempty"`
	CreationDate               time.Time                         `json:"creationDate"`
	IsUploaded                 bool                              `json:"isUploaded,omitempty"`
	Locations                  []*location.Location              `json:"locations"`
	AccelerometerReadings      []prediction.AccelerometerReading `json:"accelerometerReadings"`
	Predictions                []*prediction.Prediction          `json:"predictions"`
	AggregatePredictedActivity *prediction.PredictedActivity     `json:"aggregatePredictedActivity,omitempty"`
}

func (a *Aggregator) MarshalJSON() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.Marshal(aggregatorJSON{
		ID:                         a.ID,
		RouteID:                    a.RouteID,
		RouteUUID:                  a.RouteUUID,
		CreationDate:               a.CreationDate,
		IsUploaded:                 a.IsUploaded,
		Locations:                  a.locations,
		AccelerometerReadings:      a.readings,
		Predictions:                a.predictions,
		AggregatePredictedActivity: a.aggregate,
	})
}

func (a *Aggregator) UnmarshalJSON(data []byte) error {
	var aux aggregatorJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ID = aux.ID
	a.RouteID = aux.RouteID
	a.RouteUUID = aux.RouteUUID
	a.CreationDate = aux.CreationDate
	a.IsUploaded = aux.IsUploaded
	a.locations = aux.Locations
	a.readings = aux.AccelerometerReadings
	a.predictions = aux.Predictions
	a.aggregate = aux.AggregatePredictedActivity
	return nil
}
