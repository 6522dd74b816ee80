package conceptual

import (
	"strconv"

	"github.com/google/uuid"
)

// RouteID is the store-local identity of a route.
// It never changes, unlike the route's server-facing UUID, which is
// regenerated when the server reports a conflict.
type RouteID uint64

func (id RouteID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id RouteID) IsEmpty() bool {
	return id == 0
}

// AggregatorID identifies a prediction aggregator.
type AggregatorID string

func NewAggregatorID() AggregatorID {
	return AggregatorID(uuid.NewString())
}

func (id AggregatorID) String() string {
	return string(id)
}

func (id AggregatorID) IsEmpty() bool {
	return id == ""
}

// NewRouteUUID returns a fresh server-facing route UUID.
func NewRouteUUID() string {
	return uuid.NewString()
}
