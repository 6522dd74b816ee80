package manager

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/provider"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
)

// Event is anything the state machine reacts to.
type Event interface {
	isEvent()
}

// LocationsEvent is a batch of fixes from the location provider.
type LocationsEvent struct {
	Fixes []location.Fix
}

type VisitEvent struct {
	Visit location.Visit
}

// DeferredUpdateFinished ends a deferral period.
type DeferredUpdateFinished struct {
	Err error
}

type AuthorizationChanged struct {
	Status provider.Authorization
}

type (
	startupEvent  struct{}
	pauseRequest  struct{ until time.Time }
	resumeRequest struct{}
	stopRequest   struct {
		abort bool
		reply chan error
	}
	statusQuery        struct{ reply chan Status }
	predictionFinished struct {
		agg *aggregator.Aggregator
		err error
	}
	uploadFinished struct {
		id      conceptual.RouteID
		uuid    string
		attempt int
		lease   *lease.Lease
		err     error
	}
)

func (LocationsEvent) isEvent()         {}
func (VisitEvent) isEvent()             {}
func (DeferredUpdateFinished) isEvent() {}
func (AuthorizationChanged) isEvent()   {}
func (startupEvent) isEvent()           {}
func (pauseRequest) isEvent()           {}
func (resumeRequest) isEvent()          {}
func (stopRequest) isEvent()            {}
func (statusQuery) isEvent()            {}
func (predictionFinished) isEvent()     {}
func (uploadFinished) isEvent()         {}
