package manager

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

// Verdict is a finished classification, kept for status.
type Verdict struct {
	Date         time.Time               `json:"date"`
	AggregatorID conceptual.AggregatorID `json:"aggregatorID"`
	Activity     string                  `json:"activity"`
	Confidence   float64                 `json:"confidence"`
}

// runPredictionAndStartRouteIfNeeded buffers locations into the aggregator
// in flight, or starts a new classification with them.
func (m *Manager) runPredictionAndStartRouteIfNeeded(locs []*location.Location) {
	for _, l := range locs {
		m.logger.Debug("Location found", "speed", l.Speed, "accuracy", l.HorizontalAccuracy, "source", l.Source.String())
	}
	if m.currentAggregator != nil {
		m.currentAggregator.AddLocations(locs...)
		return
	}
	agg := aggregator.New(m.now(), locs...)
	m.currentAggregator = agg
	m.logger.Debug("Starting prediction", "aggregator", agg.ID, "locations", len(locs))
	m.predictor.Predict(m.ctx, agg, func(a *aggregator.Aggregator, err error) {
		m.internal <- predictionFinished{agg: a, err: err}
	})
}

func (m *Manager) predictionFinished(agg *aggregator.Aggregator, err error) {
	m.currentAggregator = nil
	if err != nil {
		m.logger.Info("Prediction ended without a verdict", "aggregator", agg.ID, "error", err)
	}
	if serr := m.recorder.Store.SaveAggregator(agg); serr != nil {
		m.logger.Error("Failed to save aggregator", "aggregator", agg.ID, "error", serr)
	}

	p, ok := agg.Aggregate()
	if !ok || p.Type == activity.Unknown {
		m.logger.Debug("No valid prediction found, continuing to monitor")
		return
	}
	m.recordVerdict(agg, p)
	m.logger.Info("Prediction", "activity", p.Type.String(), "emoji", p.Type.Emoji(), "confidence", p.Confidence)

	if p.Type != activity.Stationary && p.Confidence >= m.aggConfig.HighConfidence {
		m.startRouteFromPrediction(agg, p)
		return
	}
	if p.Type == activity.Stationary && m.currentRoute == nil {
		// Stationary time does not start a route. Once one is underway
		// it is kept, eg. a stop at a traffic light.
		m.logger.Debug("Discarding stationary prediction")
		return
	}
	m.pendingAggregators = append(m.pendingAggregators, agg)
}

func (m *Manager) recordVerdict(agg *aggregator.Aggregator, p prediction.PredictedActivity) {
	now := m.now()
	m.modes.Push(p.Type, now, p.Confidence)
	m.verdicts.Add(Verdict{
		Date:         now,
		AggregatorID: agg.ID,
		Activity:     p.Type.String(),
		Confidence:   p.Confidence,
	})
}

// startRouteFromPrediction resumes the prior route or opens a new one,
// then flushes pending aggregators to whichever route fits their mode.
func (m *Manager) startRouteFromPrediction(agg *aggregator.Aggregator, p prediction.PredictedActivity) {
	previous := m.mostRecentRoute()
	if previous != nil && m.currentRoute != nil && previous.ID == m.currentRoute.ID {
		previous = m.currentRoute
	}
	prior := m.currentRoute
	if prior == nil {
		prior = previous
	}

	first := agg.FirstLocation()
	if prior != nil && first != nil && m.routeQualifiesForResumption(prior, p.Type, first) {
		m.logger.Info("## Resuming route", "id", prior.ID, "activity", prior.Activity.String())
		if err := m.recorder.ReopenRoute(prior); err != nil {
			m.logger.Error("Failed to reopen route", "id", prior.ID, "error", err)
			return
		}
		m.currentRoute = prior
	} else {
		if m.currentRoute != nil && !m.currentRoute.IsClosed {
			if _, err := m.recorder.CloseRoute(m.currentRoute); err != nil {
				m.logger.Error("Failed to close route", "id", m.currentRoute.ID, "error", err)
			}
		}
		m.logger.Info("## Opening new route", "activity", p.Type.String())
		rt, err := m.recorder.OpenRoute(p.Type)
		if err != nil {
			m.logger.Error("Failed to open route", "error", err)
			m.currentRoute = nil
			return
		}
		m.currentRoute = rt
	}
	current := m.currentRoute
	m.attach(current, agg)

	// Pending aggregators go to the previous route while their mode fits
	// it, until one fits the current route; from then on, all go to the
	// current route.
	appendToCurrent := previous == nil || previous.ID == current.ID ||
		activity.IsCompatible(previous.Activity, current.Activity)
	for _, pending := range m.pendingAggregators {
		target := current
		if !appendToCurrent {
			mode := pending.Activity()
			switch {
			case activity.IsCompatible(mode, previous.Activity):
				target = previous
			case activity.IsCompatible(mode, current.Activity):
				appendToCurrent = true
			default:
				target = previous
			}
		}
		m.attach(target, pending)
	}
	m.pendingAggregators = nil

	if previous != nil && previous.ID != current.ID {
		if err := m.recorder.SaveLocationsAndUpdateLength(previous, false); err != nil {
			m.logger.Error("Failed to save route", "id", previous.ID, "error", err)
		}
	}
	if err := m.recorder.SaveLocationsAndUpdateLength(current, false); err != nil {
		m.logger.Error("Failed to save route", "id", current.ID, "error", err)
	}

	if current.Activity == activity.Cycling {
		m.startLocationTrackingUsingGPS()
	}
}

func (m *Manager) attach(rt *route.Route, agg *aggregator.Aggregator) {
	if err := m.recorder.AttachAggregator(rt, agg); err != nil {
		m.logger.Error("Failed to attach aggregator", "id", rt.ID, "aggregator", agg.ID, "error", err)
	}
}

// routeQualifiesForResumption reports whether a prediction starting at
// loc continues rt rather than starting a new route.
func (m *Manager) routeQualifiesForResumption(rt *route.Route, predicted activity.Type, loc *location.Location) bool {
	if rt.WasStoppedManually {
		return false
	}
	if !activity.Resumable(rt.Activity, predicted) {
		return false
	}
	return absDuration(rt.EndDate().Sub(loc.Date)) < m.resumeTimeout(rt)
}

func (m *Manager) resumeTimeout(rt *route.Route) time.Duration {
	switch {
	case rt.Activity == activity.Cycling && rt.Length >= m.config.ResumeLongCyclingDistance:
		return m.config.ResumeLongCyclingTimeout
	case rt.Activity == activity.Cycling:
		return m.config.ResumeCyclingTimeout
	case rt.Activity == activity.Walking:
		// Walking can be slow to trigger location changes.
		return m.config.ResumeWalkingTimeout
	}
	return m.config.ResumeOtherTimeout
}
