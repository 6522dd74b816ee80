package state

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.etcd.io/bbolt"
)

// SaveRoute writes the route, assigning it an id if it has none.
func (s *Store) SaveRoute(r *route.Route) error {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(params.StoreRoutesBucket)
		if err != nil {
			return err
		}
		if r.ID.IsEmpty() {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			r.ID = conceptual.RouteID(seq)
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(itob(uint64(r.ID)), data)
	})
	if err != nil {
		return fmt.Errorf("save route: %w", err)
	}
	s.routes.Add(r.ID, r)
	return nil
}

func (s *Store) GetRoute(id conceptual.RouteID) (*route.Route, error) {
	if r, ok := s.routes.Get(id); ok {
		return r, nil
	}
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
	s.routes.Add(r.ID, r)
	return r, nil
}

// DeleteRoute removes the route and any aggregators attached to it.
func (s *Store) DeleteRoute(id conceptual.RouteID) error {
	aggs, err := s.AggregatorsForRoute(id)
	if err != nil {
		return err
	}
	for _, a := range aggs {
		if err := s.DeleteAggregator(a.ID); err != nil {
			return err
		}
	}
	s.routes.Remove(id)
	return s.deleteKV(params.StoreRoutesBucket, itob(uint64(id)))
}

// Routes returns the routes matching the predicate, oldest first by creation date.
// A nil predicate matches every route.
func (s *Store) Routes(match func(r *route.Route) bool) ([]*route.Route, error) {
	out := []*route.Route{}
	err := s.forEach(params.StoreRoutesBucket, func(k, v []byte) error {
		id := conceptual.RouteID(btoi(k))
		r, ok := s.routes.Get(id)
		if !ok {
			r = &route.Route{}
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("route %s: %w", id, err)
			}
			s.routes.Add(id, r)
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

func (s *Store) AllRoutes() ([]*route.Route, error) {
	return s.Routes(nil)
}

func (s *Store) OpenRoutes() ([]*route.Route, error) {
	return s.Routes(func(r *route.Route) bool {
		return !r.IsClosed
	})
}

// MostRecentRoute returns the route created last, open or closed.
func (s *Store) MostRecentRoute() (*route.Route, error) {
	all, err := s.AllRoutes()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[len(all)-1], nil
}

// NextClosedUnuploadedRoute returns the oldest closed route not yet fully uploaded.
func (s *Store) NextClosedUnuploadedRoute() (*route.Route, error) {
	return s.first(func(r *route.Route) bool {
		return r.IsClosed && !r.IsUploaded
	})
}

// NextUnuploadedSummaryRoute returns the oldest closed route whose summary was not uploaded.
func (s *Store) NextUnuploadedSummaryRoute() (*route.Route, error) {
	return s.first(func(r *route.Route) bool {
		return r.IsClosed && !r.IsSummaryUploaded
	})
}

func (s *Store) first(match func(r *route.Route) bool) (*route.Route, error) {
	rs, err := s.Routes(match)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, ErrNotFound
	}
	return rs[0], nil
}

// LocationsInCircle returns every stored location within radius meters of center.
// Candidates are gathered with a padded spherical cap, then filtered by geodesic distance.
func (s *Store) LocationsInCircle(center orb.Point, radius float64) ([]*location.Location, error) {
	c := s2.PointFromLatLng(s2.LatLngFromDegrees(center.Lat(), center.Lon()))
	cp := s2.CapFromCenterAngle(c, s1.Angle(radius*1.1/orb.EarthRadius))

	all, err := s.AllRoutes()
	if err != nil {
		return nil, err
	}
	out := []*location.Location{}
	for _, r := range all {
		for _, l := range r.Locations {
			p := s2.PointFromLatLng(s2.LatLngFromDegrees(l.Latitude, l.Longitude))
			if !cp.ContainsPoint(p) {
				continue
			}
			if geo.Distance(center, l.Point()) <= radius {
				out = append(out, l)
			}
		}
	}
	return out, nil
}
