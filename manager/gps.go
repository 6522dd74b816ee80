package manager

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

func (m *Manager) didUpdateLocations(fixes []location.Fix) {
	if !m.checkPausedAndResumeIfNeeded() {
		return
	}
	fixes = m.dedupe.Filter(fixes)
	if len(fixes) == 0 {
		return
	}
	defer m.renewLocationLease()

	if level := m.batteryLevel(); level >= 0 && level <= m.config.MinimumBatteryForTracking {
		m.pauseTrackingDueToLowBattery()
		return
	}
	m.processLocations(fixes)
}

func (m *Manager) processLocations(fixes []location.Fix) {
	if m.currentRoute != nil && m.usingGPS {
		m.processGPSLocations(fixes, m.currentRoute)
		return
	}
	// Turning GPS off can still deliver a few fixes; they are not
	// significant location changes.
	if !m.stoppedGPS.IsZero() && absDuration(m.now().Sub(m.stoppedGPS)) < m.config.GPSShutdownGrace {
		m.logger.Debug("Ignoring fixes delivered after GPS shutdown", "count", len(fixes))
		return
	}
	locs := make([]*location.Location, len(fixes))
	for i, f := range fixes {
		locs[i] = location.FromFix(f, false)
	}
	m.runPredictionAndStartRouteIfNeeded(locs)
}

// processGPSLocations appends fixes to the GPS route and applies the stop
// heuristics, first satisfied wins:
//   - slow for a while, then walking for long enough;
//   - slow for too long, walking or not;
//   - no usable speed readings for too long, on routes past their first few fixes.
func (m *Manager) processGPSLocations(fixes []location.Fix, rt *route.Route) {
	if len(fixes) == 0 {
		return
	}
	cfg := m.config
	if m.sufficient == nil {
		f := fixes[0]
		m.sufficient = &f
	}
	if m.lastGPS == nil {
		f := fixes[0]
		m.lastGPS = &f
	}

	gotGPSSpeed := false
	for _, f := range fixes {
		m.logger.Debug("Location found for route", "speed", f.Speed, "accuracy", f.HorizontalAccuracy)
		rt.AddLocations(location.FromFix(f, true))

		manualSpeed := 0.0
		if f.Speed >= 0 {
			gotGPSSpeed = true
			if f.Speed >= cfg.MinimumSpeedToContinueMonitoring {
				m.nonMoving = 0
			} else {
				m.nonMoving++
			}
		} else {
			manualSpeed = m.lastGPS.CalculatedSpeedFrom(f)
			m.logger.Debug("Manually found speed", "speed", manualSpeed)
		}

		if f.Timestamp.After(m.lastGPS.Timestamp) {
			f := f
			m.lastGPS = &f
		}

		switch {
		case f.Speed >= cfg.MinimumSpeedToContinueMonitoring ||
			(manualSpeed >= cfg.MinimumSpeedToContinueMonitoring && manualSpeed < cfg.MaximumPlausibleManualSpeed):
			m.walkingStart = time.Time{}
			if f.HorizontalAccuracy <= m.recorder.RouteConfig().AcceptableLocationAccuracy &&
				f.Timestamp.After(m.sufficient.Timestamp) {
				f := f
				m.sufficient = &f
			}
		case f.Speed < cfg.MinimumSpeedToContinueMonitoring:
			if f.Speed >= cfg.MinimumSpeedForPostRouteWalkingAround {
				if m.walkingStart.IsZero() || m.walkingStart.After(f.Timestamp) {
					m.walkingStart = f.Timestamp
				}
			} else if !m.walkingStart.IsZero() && f.Timestamp.Sub(m.walkingStart) < cfg.MinimumIntervalBeforeDeclaringWalkingSession {
				m.walkingStart = time.Time{}
			}
		}
	}

	if err := m.recorder.SaveLocationsAndUpdateLength(rt, true); err != nil {
		m.logger.Error("Failed to save route locations", "id", rt.ID, "error", err)
	}
	m.beginDeferringUpdatesIfAppropriate()

	sinceMoving := absDuration(m.sufficient.Timestamp.Sub(m.lastGPS.Timestamp))
	switch {
	case gotGPSSpeed && sinceMoving > cfg.IntervalForConsideringStoppedRoute:
		if m.nonMoving < cfg.MinimumNonMovingContiguousGPSLocations {
			m.logger.Debug("Not enough slow locations to stop, waiting")
			return
		}
		if !m.walkingStart.IsZero() && m.lastGPS.Timestamp.Sub(m.walkingStart) >= cfg.MinimumIntervalBeforeDeclaringWalkingSession {
			m.logger.Info("Started walking after stopping", "id", rt.ID)
			_ = m.stopGPSRouteAndEnterBackgroundState(false, false)
		} else if sinceMoving > cfg.IntervalForStoppingRouteWithoutSubsequentWalking {
			m.logger.Info("Moving too slow for too long", "id", rt.ID, "since", sinceMoving)
			_ = m.stopGPSRouteAndEnterBackgroundState(false, false)
		}
	case !gotGPSSpeed:
		limit := cfg.IntervalBeforeStoppedRouteDueToUnusableSpeeds
		if m.deferring {
			// Deferral can deliver stale significant-change fixes.
			limit += cfg.IntervalForLocationTrackingDeferral
		}
		if sinceMoving <= limit {
			m.logger.Debug("Nothing but unusable speeds, awaiting next update")
			return
		}
		if rt.LocationCount() > cfg.MinimumLocationsToStopForUnusableSpeeds {
			m.logger.Info("Went too long with unusable speeds", "id", rt.ID, "since", sinceMoving)
			_ = m.stopGPSRouteAndEnterBackgroundState(false, false)
		} else {
			m.logger.Debug("Received stale location with unusable speeds, awaiting new update")
		}
	}
}
