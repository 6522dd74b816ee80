// Package upload syncs closed routes and prediction aggregators to the trip server.
package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

var (
	// ErrConflict is returned when the server already holds a route with the UUID.
	ErrConflict = errors.New("route uuid conflict")

	ErrRouteNotClosed  = errors.New("route not closed")
	ErrAlreadyUploaded = errors.New("route already uploaded")
	ErrNoLocations     = errors.New("route has no locations to upload")
)

// StatusError is a non-2xx response other than a conflict.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload: status %d", e.Code)
	}
	return fmt.Sprintf("upload: status %d: %s", e.Code, e.Message)
}

// Gateway accepts closed routes and aggregators for sync.
// One call is one attempt; retries belong to the caller.
//
// UploadPredictionAggregators sends aggregators in order and returns how many
// were accepted before the first failure.
type Gateway interface {
	UploadRoute(ctx context.Context, r *route.Route, full bool) error
	UploadPredictionAggregators(ctx context.Context, aggs []*aggregator.Aggregator) (int, error)
}

// CheckUploadable refuses routes the server must not see.
func CheckUploadable(r *route.Route) error {
	if !r.IsClosed {
		return ErrRouteNotClosed
	}
	if r.IsUploaded {
		return ErrAlreadyUploaded
	}
	return nil
}
