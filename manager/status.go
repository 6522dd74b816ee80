package manager

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
)

type PowerState string

const (
	PowerStateBackground PowerState = "background"
	PowerStateActiveGPS  PowerState = "activeGPS"
	PowerStatePaused     PowerState = "paused"
)

// Status is a snapshot of the state machine for the shell to show.
type Status struct {
	PowerState PowerState `json:"powerState"`
	Deferring  bool       `json:"deferring"`

	RouteOpen        bool               `json:"routeOpen"`
	RouteID          conceptual.RouteID `json:"routeID,omitempty"`
	RouteUUID        string             `json:"routeUUID,omitempty"`
	RouteActivity    string             `json:"routeActivity,omitempty"`
	RouteLocations   int                `json:"routeLocations,omitempty"`
	InProgressLength float64            `json:"inProgressLength,omitempty"`

	Paused      bool               `json:"paused"`
	PauseReason events.PauseReason `json:"pauseReason,omitempty"`
	PausedUntil time.Time          `json:"pausedUntil,omitempty"`

	Predicting         bool      `json:"predicting"`
	PendingAggregators int       `json:"pendingAggregators"`
	DominantMode       string    `json:"dominantMode,omitempty"`
	RecentVerdicts     []Verdict `json:"recentVerdicts,omitempty"`

	SummaryUploads int `json:"summaryUploads"`

	Leases lease.Stats `json:"leases"`
}

func (m *Manager) status() Status {
	s := Status{
		PowerState:         PowerStateBackground,
		Deferring:          m.deferring,
		Predicting:         m.currentAggregator != nil,
		PendingAggregators: len(m.pendingAggregators),
		RecentVerdicts:     m.verdicts.Get(),
		SummaryUploads:     m.uploadsInFlight,
		Leases:             m.leases.Stats(),
	}
	if m.usingGPS {
		s.PowerState = PowerStateActiveGPS
	}
	if reason := m.pauseReason(); reason != events.PauseReasonNone {
		s.PowerState = PowerStatePaused
		s.Paused = true
		s.PauseReason = reason
		s.PausedUntil = m.recorderState().PausedUntil
	}
	if rt := m.currentRoute; rt != nil {
		s.RouteOpen = !rt.IsClosed
		s.RouteID = rt.ID
		s.RouteUUID = rt.UUID
		s.RouteActivity = rt.Activity.String()
		s.RouteLocations = rt.LocationCount()
		s.InProgressLength = rt.InProgressLength
	}
	if modes := m.modes.Sorted(true); len(modes) > 0 {
		s.DominantMode = modes[0].Activity.String()
	}
	return s
}
