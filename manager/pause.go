package manager

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/provider"
	"github.com/RideReport/RideRecorderApp-sub003/state"
)

func (m *Manager) batteryLevel() float64 {
	if m.battery == nil {
		return -1
	}
	return m.battery.BatteryLevel()
}

func (m *Manager) recorderState() *state.RecorderState {
	st, err := m.recorder.Store.ReadRecorderState()
	if err != nil {
		m.logger.Error("Failed to read recorder state", "error", err)
		return &state.RecorderState{}
	}
	return st
}

// pauseReason is why tracking is paused, or none.
func (m *Manager) pauseReason() events.PauseReason {
	if level := m.batteryLevel(); level >= 0 && level < m.config.MinimumBatteryForTracking {
		return events.PauseReasonBattery
	}
	if m.recorderState().Paused {
		return events.PauseReasonUser
	}
	if m.locations.AuthorizationStatus() != provider.AuthorizationAlways {
		return events.PauseReasonUnauthorized
	}
	return events.PauseReasonNone
}

func (m *Manager) isPaused() bool {
	return m.pauseReason() != events.PauseReasonNone
}

// checkPausedAndResumeIfNeeded reports whether updates should be processed,
// resuming a user pause whose end has passed.
func (m *Manager) checkPausedAndResumeIfNeeded() bool {
	if !m.isPaused() {
		return true
	}
	st := m.recorderState()
	if !st.PausedUntil.IsZero() && !st.PausedUntil.After(m.now()) {
		m.logger.Info("Auto-resuming tracking", "pausedUntil", st.PausedUntil)
		m.resumeTracking()
		return true
	}
	m.logger.Debug("Tracking is paused, ignoring update")
	return false
}

func (m *Manager) pauseTracking(until time.Time) {
	if m.isPaused() {
		return
	}
	change := events.PauseChange{Paused: true, Reason: events.PauseReasonUser, Until: until}
	if until.IsZero() {
		change.RemindAt = m.now().Add(m.config.PauseReminderDelay)
	}
	if err := m.recorder.Store.UpdateRecorderState(func(st *state.RecorderState) {
		st.Paused = true
		st.PausedUntil = until
		st.PauseReason = events.PauseReasonUser
	}); err != nil {
		m.logger.Error("Failed to persist pause", "error", err)
		return
	}
	m.logger.Info("## Paused tracking", "until", until)

	_ = m.stopGPSRouteAndEnterBackgroundState(false, false)
	if err := m.recorder.ClearLastArrival(); err != nil {
		m.logger.Error("Failed to clear last arrival", "error", err)
	}
	m.recorder.Feeds.PauseChanged.Send(change)
}

func (m *Manager) pauseTrackingDueToLowBattery() {
	if m.usingGPS {
		m.logger.Info("## Paused tracking due to battery life", "level", m.batteryLevel())
		_ = m.stopGPSRouteAndEnterBackgroundState(false, false)
	}
	if err := m.recorder.ClearLastArrival(); err != nil {
		m.logger.Error("Failed to clear last arrival", "error", err)
	}
	m.recorder.Feeds.PauseChanged.Send(events.PauseChange{Paused: true, Reason: events.PauseReasonBattery})
}

func (m *Manager) resumeTracking() {
	if !m.isPaused() {
		return
	}
	if err := m.recorder.Store.UpdateRecorderState(func(st *state.RecorderState) {
		st.Paused = false
		st.PausedUntil = time.Time{}
		st.PauseReason = events.PauseReasonNone
	}); err != nil {
		m.logger.Error("Failed to persist resume", "error", err)
		return
	}
	m.logger.Info("## Resumed tracking")
	m.startTrackingMachine()

	change := events.PauseChange{Paused: false}
	if reason := m.pauseReason(); reason != events.PauseReasonNone {
		change = events.PauseChange{Paused: true, Reason: reason}
	}
	m.recorder.Feeds.PauseChanged.Send(change)
}

func (m *Manager) didChangeAuthorization(a provider.Authorization) {
	m.logger.Info("Authorization changed", "status", a.String())
	if a == provider.AuthorizationAlways {
		m.startTrackingMachine()
	} else {
		m.logger.Warn("Not authorized for location access")
	}
	reason := m.pauseReason()
	m.recorder.Feeds.PauseChanged.Send(events.PauseChange{Paused: reason != events.PauseReasonNone, Reason: reason})
}
