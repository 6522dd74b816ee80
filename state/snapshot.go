package state

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

// RouteSnapshot decodes the route as last saved, bypassing the live cache.
// The result is private to the caller and safe to read from any goroutine.
func (s *Store) RouteSnapshot(id conceptual.RouteID) (*route.Route, error) {
	data, err := s.getKV(params.StoreRoutesBucket, itob(uint64(id)))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("route %s: %w", id, ErrNotFound)
	}
	r := &route.Route{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("route %s: %w", id, err)
	}
	return r, nil
}

// RouteSnapshots is Routes for readers outside the recording goroutine.
func (s *Store) RouteSnapshots(match func(r *route.Route) bool) ([]*route.Route, error) {
	out := []*route.Route{}
	err := s.forEach(params.StoreRoutesBucket, func(k, v []byte) error {
		r := &route.Route{}
		if err := json.Unmarshal(v, r); err != nil {
			return fmt.Errorf("route %d: %w", btoi(k), err)
		}
		if match == nil || match(r) {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *route.Route) int {
		return a.CreationDate.Compare(b.CreationDate)
	})
	return out, nil
}
