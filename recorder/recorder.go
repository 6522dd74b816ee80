// Package recorder owns the route lifecycle: opening, closing, reopening
// and canceling routes against the store, and syncing them upstream.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/geo/placename"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/RideReport/RideRecorderApp-sub003/upload"
	"github.com/dustin/go-humanize"
)

// ErrNoGateway is returned by uploads when no gateway is configured.
var ErrNoGateway = errors.New("no upload gateway")

// Recorder is the one context object shared by the state machine and the
// CLI. It is not safe for concurrent use; the manager's event loop is
// its only writer while running.
type Recorder struct {
	Store   *state.Store
	Gateway upload.Gateway

	// Places, when set, names the start and end of closed routes.
	Places placename.Namer

	// Feeds is where route lifecycle events go.
	Feeds *events.Feeds

	routeConfig  *params.RouteConfig
	uploadConfig *params.UploadConfig
	now          func() time.Time
	logger       *slog.Logger
}

func New(store *state.Store, gateway upload.Gateway, routeConfig *params.RouteConfig, uploadConfig *params.UploadConfig) *Recorder {
	if routeConfig == nil {
		routeConfig = params.DefaultRouteConfig
	}
	if uploadConfig == nil {
		uploadConfig = params.DefaultUploadConfig
	}
	return &Recorder{
		Store:        store,
		Gateway:      gateway,
		routeConfig:  routeConfig,
		uploadConfig: uploadConfig,
		Feeds:        events.NewFeeds(),
		now:          time.Now,
		logger:       slog.With("d", "recorder"),
	}
}

// SetClock replaces the recorder's time source.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Recorder) RouteConfig() *params.RouteConfig {
	return r.routeConfig
}

func (r *Recorder) UploadConfig() *params.UploadConfig {
	return r.uploadConfig
}

// OpenRoute creates and saves a new open route of the given mode.
// The last arrival location, if any, becomes its first location.
func (r *Recorder) OpenRoute(mode activity.Type) (*route.Route, error) {
	rt := route.New(r.now())
	rt.Activity = mode

	st, err := r.Store.ReadRecorderState()
	if err != nil {
		return nil, err
	}
	if st.LastArrivalLocation != nil {
		rt.AddLocations(location.FromLastArrival(st.LastArrivalLocation))
	}
	if err := r.Store.SaveRoute(rt); err != nil {
		return nil, err
	}
	r.logger.Info("## Opened route", "id", rt.ID, "uuid", rt.UUID, "activity", mode.String())
	r.Feeds.RouteOpened.Send(rt)
	return rt, nil
}

// SaveLocationsAndUpdateLength persists the route after updating its
// in-progress length. Intermittent updates only recompute every
// InProgressUpdateEvery locations.
func (r *Recorder) SaveLocationsAndUpdateLength(rt *route.Route, intermittently bool) error {
	if rt == nil {
		return nil
	}
	if rt.UpdateInProgressLength(intermittently, r.routeConfig.InProgressUpdateEvery) {
		r.logger.Debug("Updated in-progress length", "id", rt.ID,
			"length", humanize.SIWithDigits(rt.InProgressLength, 1, "m"))
	}
	return r.Store.SaveRoute(rt)
}

// CloseRoute closes the route if it passes its close checks, otherwise
// cancels it. It reports whether the route was closed.
func (r *Recorder) CloseRoute(rt *route.Route) (closed bool, err error) {
	if rt.IsClosed {
		return true, nil
	}
	ok, reason := rt.CloseVerdict(r.routeConfig)
	if !ok {
		r.logger.Info("Route failed close checks, canceling", "id", rt.ID, "reason", reason,
			"locations", rt.LocationCount(), "activity", rt.Activity.String())
		return false, r.CancelRoute(rt)
	}

	if last := rt.MostRecentLocation(); last != nil {
		anchor := *last
		anchor.Simplified = false
		if err := r.Store.UpdateRecorderState(func(st *state.RecorderState) {
			st.LastArrivalLocation = &anchor
		}); err != nil {
			return false, err
		}
	}
	rt.MarkClosed(r.routeConfig, r.now())
	r.namePlaces(rt)
	if err := r.Store.SaveRoute(rt); err != nil {
		return false, err
	}
	r.logger.Info("## Closed route", "id", rt.ID, "uuid", rt.UUID, "activity", rt.Activity.String(),
		"locations", rt.LocationCount(), "length", humanize.SIWithDigits(rt.Length, 1, "m"),
		"duration", rt.Duration().Round(time.Second))
	r.Feeds.RouteClosed.Send(rt)
	return true, nil
}

func (r *Recorder) namePlaces(rt *route.Route) {
	if r.Places == nil {
		return
	}
	if first := rt.FirstLocation(true); first != nil {
		if name, err := r.Places.Name(first.Point()); err == nil {
			rt.StartPlace = name
		}
	}
	if last := rt.MostRecentLocation(); last != nil {
		if name, err := r.Places.Name(last.Point()); err == nil {
			rt.EndPlace = name
		}
	}
}

// ReopenRoute makes a closed route open again.
func (r *Recorder) ReopenRoute(rt *route.Route) error {
	if !rt.IsClosed {
		return nil
	}
	rt.ResetForReopen()
	if err := r.Store.SaveRoute(rt); err != nil {
		return err
	}
	r.logger.Info("## Reopened route", "id", rt.ID, "uuid", rt.UUID, "activity", rt.Activity.String())
	r.Feeds.RouteOpened.Send(rt)
	return nil
}

// CancelRoute deletes the route and its aggregators.
func (r *Recorder) CancelRoute(rt *route.Route) error {
	if !rt.ID.IsEmpty() {
		if err := r.Store.DeleteRoute(rt.ID); err != nil {
			return err
		}
	}
	r.logger.Info("## Canceled route", "id", rt.ID, "uuid", rt.UUID, "locations", rt.LocationCount())
	r.Feeds.RouteCancelled.Send(rt)
	return nil
}

// AttachAggregator assigns the aggregator to the route. An open route also
// takes the aggregator's buffered locations; the aggregator keeps its copy
// for upload. Closed routes keep their locations as they were closed.
func (r *Recorder) AttachAggregator(rt *route.Route, agg *aggregator.Aggregator) error {
	agg.RouteID = rt.ID
	agg.RouteUUID = rt.UUID
	if !rt.IsClosed {
		rt.AddLocations(agg.Locations()...)
	}
	rt.AttachAggregator(agg.ID)
	if err := r.Store.SaveAggregator(agg); err != nil {
		return err
	}
	return r.Store.SaveRoute(rt)
}

// SweepOpenRoutes closes routes left open by a previous run.
// Routes with too few locations are canceled instead.
func (r *Recorder) SweepOpenRoutes() (closed, canceled int, err error) {
	open, err := r.Store.OpenRoutes()
	if err != nil {
		return 0, 0, err
	}
	for _, rt := range open {
		if rt.LocationCount() <= r.routeConfig.SweepMaximumLocationsToCancel {
			if err := r.CancelRoute(rt); err != nil {
				return closed, canceled, err
			}
			canceled++
			continue
		}
		ok, err := r.CloseRoute(rt)
		if err != nil {
			return closed, canceled, err
		}
		if ok {
			closed++
		} else {
			canceled++
		}
	}
	if len(open) > 0 {
		r.logger.Info("Swept open routes", "closed", closed, "canceled", canceled)
	}
	return closed, canceled, nil
}

// ClearLastArrival forgets the anchor for the next route.
func (r *Recorder) ClearLastArrival() error {
	return r.Store.UpdateRecorderState(func(st *state.RecorderState) {
		st.LastArrivalLocation = nil
	})
}

// UploadRoute syncs one closed route. A UUID conflict regenerates the
// route's UUID and retries once; any other failure is recorded on the
// route and returned.
func (r *Recorder) UploadRoute(ctx context.Context, rt *route.Route, full bool) error {
	if r.Gateway == nil {
		return ErrNoGateway
	}
	if err := upload.CheckUploadable(rt); err != nil {
		return err
	}
	err := r.Gateway.UploadRoute(ctx, rt, full)
	if errors.Is(err, upload.ErrConflict) {
		if serr := r.ResolveConflict(rt); serr != nil {
			return serr
		}
		err = r.Gateway.UploadRoute(ctx, rt, full)
	}
	return r.RecordUpload(rt, full, err)
}

// ResolveConflict gives the route a fresh UUID after the server reported
// a clash, so it can be resubmitted.
func (r *Recorder) ResolveConflict(rt *route.Route) error {
	old := rt.UUID
	rt.GenerateUUID()
	r.logger.Warn("Route uuid conflict, retrying with a new uuid", "id", rt.ID, "old", old, "new", rt.UUID)
	return r.Store.SaveRoute(rt)
}

// RecordUpload stores the outcome of an upload attempt on the route.
// A failure is kept as the route's sync error and returned.
func (r *Recorder) RecordUpload(rt *route.Route, full bool, err error) error {
	if err != nil {
		rt.LastSyncError = err.Error()
		if serr := r.Store.SaveRoute(rt); serr != nil {
			r.logger.Error("Failed to save sync error", "id", rt.ID, "error", serr)
		}
		return fmt.Errorf("upload route %s: %w", rt.ID, err)
	}
	rt.IsSummaryUploaded = true
	if full {
		rt.IsUploaded = true
	}
	rt.LastSyncError = ""
	if err := r.Store.SaveRoute(rt); err != nil {
		return err
	}
	r.Feeds.RouteUploaded.Send(rt)
	return nil
}

// UploadRoutes uploads closed routes oldest first until none remain or
// one fails. Summary passes stop at routes whose summary is uploaded;
// full passes continue until every closed route is fully uploaded.
func (r *Recorder) UploadRoutes(ctx context.Context, full bool) (int, error) {
	next := r.Store.NextUnuploadedSummaryRoute
	if full {
		next = r.Store.NextClosedUnuploadedRoute
	}
	n := 0
	for {
		rt, err := next()
		if errors.Is(err, state.ErrNotFound) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if n > 0 {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-time.After(r.uploadConfig.PassInterval):
			}
		}
		if err := r.UploadRoute(ctx, rt, full); err != nil {
			r.logger.Warn("Upload pass stopped", "uploaded", n, "error", err)
			return n, err
		}
		n++
	}
}

// UploadPredictionAggregators uploads decided aggregators not yet uploaded.
func (r *Recorder) UploadPredictionAggregators(ctx context.Context) (int, error) {
	if r.Gateway == nil {
		return 0, ErrNoGateway
	}
	aggs, err := r.Store.UnuploadedAggregators()
	if err != nil {
		return 0, err
	}
	if len(aggs) == 0 {
		return 0, nil
	}
	n, uerr := r.Gateway.UploadPredictionAggregators(ctx, aggs)
	n = min(max(n, 0), len(aggs))
	for _, a := range aggs[:n] {
		a.IsUploaded = true
		if err := r.Store.SaveAggregator(a); err != nil {
			return 0, err
		}
	}
	if uerr != nil {
		r.logger.Warn("Prediction aggregator upload stopped", "uploaded", n, "of", len(aggs), "error", uerr)
		return n, uerr
	}
	r.logger.Info("Uploaded prediction aggregators", "count", n)
	return n, nil
}
