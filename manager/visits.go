package manager

import (
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
)

// didVisit ends routes on arrival and anchors route starts on departure.
func (m *Manager) didVisit(v location.Visit) {
	if !m.checkPausedAndResumeIfNeeded() {
		return
	}
	if v.IsArrival() {
		m.didArrive(v)
		return
	}

	m.logger.Info("User departed", "departure", v.DepartureDate)
	loc := location.FromVisit(v, false)
	if rt := m.currentRoute; rt != nil {
		rt.AddLocations(loc)
		if err := m.recorder.Store.SaveRoute(rt); err != nil {
			m.logger.Error("Failed to save route", "id", rt.ID, "error", err)
		}
		return
	}
	if prior := m.mostRecentRoute(); prior != nil {
		if last := prior.MostRecentLocation(); last != nil && loc.Date.Before(last.Date) {
			// The departure happened before the last route ended; it belongs there.
			prior.AddLocations(loc)
			if !prior.IsClosed {
				if err := m.recorder.Store.SaveRoute(prior); err != nil {
					m.logger.Error("Failed to save route", "id", prior.ID, "error", err)
				}
				return
			}
			if err := m.recorder.ReopenRoute(prior); err != nil {
				m.logger.Error("Failed to reopen route", "id", prior.ID, "error", err)
				return
			}
			if _, err := m.recorder.CloseRoute(prior); err != nil {
				m.logger.Error("Failed to close route", "id", prior.ID, "error", err)
			}
			return
		}
	}
	m.runPredictionAndStartRouteIfNeeded([]*location.Location{loc})
}

func (m *Manager) didArrive(v location.Visit) {
	m.logger.Info("User arrived", "arrival", v.ArrivalDate)
	if m.usingGPS {
		// GPS knows better.
		return
	}
	rt := m.currentRoute
	if rt == nil {
		rt = m.mostRecentRoute()
	}
	if rt != nil && !rt.IsClosed {
		m.logger.Info("## Ending route with arrival", "id", rt.ID)
		rt.AddLocations(location.FromVisit(v, true))
		if _, err := m.recorder.CloseRoute(rt); err != nil {
			m.logger.Error("Failed to close route", "id", rt.ID, "error", err)
		}
		m.currentRoute = nil
	}
	// Undecided aggregators never became a trip.
	m.pendingAggregators = nil
}
