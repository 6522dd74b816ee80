package statusd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/olahol/melody"
)

type websocketAction string

const (
	actionRouteOpened   websocketAction = "routeOpened"
	actionRouteClosed   websocketAction = "routeClosed"
	actionRouteCanceled websocketAction = "routeCanceled"
	actionRouteUploaded websocketAction = "routeUploaded"
	actionPauseChanged  websocketAction = "pauseChanged"
)

// Broadcast is one event pushed to websocket clients.
type Broadcast struct {
	Action websocketAction     `json:"action"`
	At     time.Time           `json:"at"`
	Route  *RouteSummary       `json:"route,omitempty"`
	Pause  *events.PauseChange `json:"pause,omitempty"`
}

// initMelody sets up the websocket handler.
func (s *StatusDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// Catch new clients up on what happened recently.
	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket connected", "remote", sess.Request.RemoteAddr)
		for _, bc := range s.recent.List() {
			b, err := json.Marshal(bc)
			if err != nil {
				continue
			}
			_ = sess.Write(b)
		}
	})

	// Clients have nothing to say. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", sess.Request.RemoteAddr, "message", string(msg))
	})
	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Debug("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})
	s.melodyInstance.HandleError(func(sess *melody.Session, err error) {
		s.logger.Warn("Websocket error", "remote", sess.Request.RemoteAddr, "error", err)
	})
}

// broadcastEvents relays route and pause events until ctx is done.
// Route payloads are live values owned by the manager: only their
// id is read here, the rest comes from the store. Canceled routes
// are already detached from the manager.
func (s *StatusDaemon) broadcastEvents(ctx context.Context) {
	if s.feeds == nil {
		return
	}
	opened := make(chan *route.Route, 16)
	closed := make(chan *route.Route, 16)
	canceled := make(chan *route.Route, 16)
	uploaded := make(chan *route.Route, 16)
	paused := make(chan events.PauseChange, 16)

	openedSub := s.feeds.RouteOpened.Subscribe(opened)
	defer openedSub.Unsubscribe()
	closedSub := s.feeds.RouteClosed.Subscribe(closed)
	defer closedSub.Unsubscribe()
	canceledSub := s.feeds.RouteCancelled.Subscribe(canceled)
	defer canceledSub.Unsubscribe()
	uploadedSub := s.feeds.RouteUploaded.Subscribe(uploaded)
	defer uploadedSub.Unsubscribe()
	pausedSub := s.feeds.PauseChanged.Subscribe(paused)
	defer pausedSub.Unsubscribe()

	for {
		var bc Broadcast
		select {
		case <-ctx.Done():
			return
		case rt := <-opened:
			bc = s.routeBroadcast(actionRouteOpened, rt)
		case rt := <-closed:
			bc = s.routeBroadcast(actionRouteClosed, rt)
		case rt := <-canceled:
			bc = Broadcast{Action: actionRouteCanceled, Route: &RouteSummary{ID: rt.ID, UUID: rt.UUID, SyncStatus: SyncStatusCanceled}}
		case rt := <-uploaded:
			bc = s.routeBroadcast(actionRouteUploaded, rt)
		case pc := <-paused:
			bc = Broadcast{Action: actionPauseChanged, Pause: &pc}
		case err := <-openedSub.Err():
			s.logger.Error("Route feed subscription failed", "error", err)
			return
		}
		bc.At = time.Now()
		s.publish(bc)
	}
}

func (s *StatusDaemon) routeBroadcast(action websocketAction, rt *route.Route) Broadcast {
	bc := Broadcast{Action: action}
	snap, err := s.store.RouteSnapshot(rt.ID)
	if err != nil {
		s.logger.Warn("Route not readable for broadcast", "id", rt.ID, "error", err)
		bc.Route = &RouteSummary{ID: rt.ID}
		return bc
	}
	sum := summarize(snap, s.routeConfig)
	bc.Route = &sum
	return bc
}

func (s *StatusDaemon) publish(bc Broadcast) {
	s.recent.Add(bc)
	b, err := json.Marshal(bc)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast", "action", bc.Action, "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(b); err != nil {
		s.logger.Warn("Failed to broadcast", "action", bc.Action, "error", err)
	}
}
