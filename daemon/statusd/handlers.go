package statusd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/manager"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "inProgress"
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusSummary    SyncStatus = "summaryUploaded"
	SyncStatusUploaded   SyncStatus = "uploaded"
	SyncStatusError      SyncStatus = "error"
	SyncStatusCanceled   SyncStatus = "canceled"
)

// RouteSummary is a route without its locations.
type RouteSummary struct {
	ID         conceptual.RouteID `json:"id"`
	UUID       string             `json:"uuid"`
	Activity   string             `json:"activity,omitempty"`
	Closed     bool               `json:"closed"`
	Manual     bool               `json:"stoppedManually,omitempty"`
	Start      time.Time          `json:"start,omitempty"`
	End        time.Time          `json:"end,omitempty"`
	Duration   float64            `json:"duration,omitempty"`
	Length     float64            `json:"length,omitempty"`
	Locations  int                `json:"locations,omitempty"`
	StartPlace string             `json:"startPlace,omitempty"`
	EndPlace   string             `json:"endPlace,omitempty"`
	SyncStatus SyncStatus         `json:"syncStatus,omitempty"`
	SyncError  string             `json:"syncError,omitempty"`
	Bound      *orb.Bound         `json:"bound,omitempty"`
}

func syncStatus(rt *route.Route) SyncStatus {
	switch {
	case !rt.IsClosed:
		return SyncStatusInProgress
	case rt.IsUploaded:
		return SyncStatusUploaded
	case rt.LastSyncError != "":
		return SyncStatusError
	case rt.IsSummaryUploaded:
		return SyncStatusSummary
	}
	return SyncStatusPending
}

func summarize(rt *route.Route, config *params.RouteConfig) RouteSummary {
	sum := RouteSummary{
		ID:         rt.ID,
		UUID:       rt.UUID,
		Activity:   rt.Activity.String(),
		Closed:     rt.IsClosed,
		Manual:     rt.WasStoppedManually,
		Start:      rt.StartDate(),
		End:        rt.EndDate(),
		Duration:   rt.Duration().Round(time.Second).Seconds(),
		Length:     rt.Length,
		Locations:  rt.LocationCount(),
		StartPlace: rt.StartPlace,
		EndPlace:   rt.EndPlace,
		SyncStatus: syncStatus(rt),
		SyncError:  rt.LastSyncError,
	}
	if !rt.IsClosed {
		sum.Length = rt.InProgressLength
	}
	if rt.LocationCount() > 0 {
		mp := make(orb.MultiPoint, 0, rt.LocationCount())
		for _, l := range rt.OrderedLocations(false, true) {
			mp = append(mp, l.Point())
		}
		b := mp.Bound()
		sum.Bound = &b
	}
	return sum
}

type statusReport struct {
	StartedAt time.Time       `json:"started_at"`
	Uptime    string          `json:"uptime"`
	WSOpen    bool            `json:"ws_open"`
	WSConns   int             `json:"ws_conns"`
	Recorder  *manager.Status `json:"recorder,omitempty"`
}

func (s *StatusDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := statusReport{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
	}
	if s.status != nil {
		ms, err := s.status.Status(r.Context())
		if err != nil {
			s.logger.Error("Failed to read recorder status", "error", err)
			http.Error(w, "Failed to read recorder status", http.StatusServiceUnavailable)
			return
		}
		st.Recorder = &ms
	}
	s.writeJSON(w, st)
}

// handleRoutes lists route summaries, oldest first.
// ?closed=true|false filters on closed state; ?limit=n keeps the newest n.
func (s *StatusDaemon) handleRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var match func(rt *route.Route) bool
	if c := q.Get("closed"); c != "" {
		want, err := strconv.ParseBool(c)
		if err != nil {
			http.Error(w, "Bad closed parameter", http.StatusBadRequest)
			return
		}
		match = func(rt *route.Route) bool { return rt.IsClosed == want }
	}
	routes, err := s.store.RouteSnapshots(match)
	if err != nil {
		s.logger.Error("Failed to read routes", "error", err)
		http.Error(w, "Failed to read routes", http.StatusInternalServerError)
		return
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "Bad limit parameter", http.StatusBadRequest)
			return
		}
		if n < len(routes) {
			routes = routes[len(routes)-n:]
		}
	}
	out := make([]RouteSummary, 0, len(routes))
	for _, rt := range routes {
		out = append(out, summarize(rt, s.routeConfig))
	}
	s.writeJSON(w, out)
}

// handleRoute writes one route as a GeoJSON feature.
func (s *StatusDaemon) handleRoute(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Bad route id", http.StatusBadRequest)
		return
	}
	rt, err := s.store.RouteSnapshot(conceptual.RouteID(id))
	if errors.Is(err, state.ErrNotFound) {
		http.Error(w, "No such route", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to read route", "id", id, "error", err)
		http.Error(w, "Failed to read route", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	s.writeJSON(w, rt.Feature(s.routeConfig))
}

func (s *StatusDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
