package state

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/params"
)

func (s *Store) SaveAggregator(a *aggregator.Aggregator) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.putKV(params.StoreAggregatorsBucket, []byte(a.ID), data); err != nil {
		return fmt.Errorf("save aggregator: %w", err)
	}
	return nil
}

func (s *Store) GetAggregator(id conceptual.AggregatorID) (*aggregator.Aggregator, error) {
	data, err := s.getKV(params.StoreAggregatorsBucket, []byte(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("aggregator %s: %w", id, ErrNotFound)
	}
	a := &aggregator.Aggregator{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("aggregator %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) DeleteAggregator(id conceptual.AggregatorID) error {
	return s.deleteKV(params.StoreAggregatorsBucket, []byte(id))
}

// Aggregators returns the aggregators matching the predicate, oldest first.
func (s *Store) Aggregators(match func(a *aggregator.Aggregator) bool) ([]*aggregator.Aggregator, error) {
	out := []*aggregator.Aggregator{}
	err := s.forEach(params.StoreAggregatorsBucket, func(k, v []byte) error {
		a := &aggregator.Aggregator{}
		if err := json.Unmarshal(v, a); err != nil {
			return fmt.Errorf("aggregator %s: %w", k, err)
		}
		if match == nil || match(a) {
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *aggregator.Aggregator) int {
		return a.CreationDate.Compare(b.CreationDate)
	})
	return out, nil
}

func (s *Store) AggregatorsForRoute(id conceptual.RouteID) ([]*aggregator.Aggregator, error) {
	return s.Aggregators(func(a *aggregator.Aggregator) bool {
		return a.RouteID == id
	})
}

// UnuploadedAggregators returns aggregators with a verdict that were not uploaded.
func (s *Store) UnuploadedAggregators() ([]*aggregator.Aggregator, error) {
	return s.Aggregators(func(a *aggregator.Aggregator) bool {
		_, ok := a.Aggregate()
		return ok && !a.IsUploaded
	})
}
