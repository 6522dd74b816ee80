package events

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/ethereum/go-ethereum/event"
)

// Feeds carries the recorder's lifecycle events. One set is created with
// each recorder and handed to whoever wants to listen.
//
// Sends block until every subscriber has received, so subscribers
// should read from buffered channels.
type Feeds struct {
	// RouteOpened is emitted when a new route is opened or a closed one is reopened.
	RouteOpened event.FeedOf[*route.Route]

	// RouteClosed is emitted after a route passes its close checks and is persisted as closed.
	RouteClosed event.FeedOf[*route.Route]

	// RouteCancelled is emitted after a route is deleted.
	// The payload is the route as it was just before deletion.
	RouteCancelled event.FeedOf[*route.Route]

	// RouteUploaded is emitted when the trip server accepts a route.
	RouteUploaded event.FeedOf[*route.Route]

	// PauseChanged is emitted whenever tracking pauses or resumes.
	PauseChanged event.FeedOf[PauseChange]
}

func NewFeeds() *Feeds {
	return &Feeds{}
}

// PauseReason says why tracking is paused.
type PauseReason string

const (
	PauseReasonNone         PauseReason = ""
	PauseReasonUser         PauseReason = "user"
	PauseReasonBattery      PauseReason = "battery"
	PauseReasonUnauthorized PauseReason = "unauthorized"
)

// PauseChange describes a transition into or out of paused tracking.
type PauseChange struct {
	Paused bool        `json:"paused"`
	Reason PauseReason `json:"reason,omitempty"`

	// Until is when a user pause ends on its own; zero means indefinitely.
	Until time.Time `json:"until,omitempty"`

	// RemindAt is set for indefinite user pauses: when to nag the user.
	RemindAt time.Time `json:"remindAt,omitempty"`
}
