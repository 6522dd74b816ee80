package route

import (
	"math"
	"slices"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/conceptual"
	"github.com/RideReport/RideRecorderApp-sub003/geo/simplify"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/paulmach/orb"
)

// Route is one continuous journey.
// It is open while receiving locations, then closed. Closed routes only
// change their upload flags, unless reopened.
type Route struct {
	ID   conceptual.RouteID `json:"id"`
	UUID string             `json:"uuid"`

	CreationDate time.Time     `json:"creationDate"`
	ClosedDate   time.Time     `json:"closedDate,omitempty"`
	Activity     activity.Type `json:"activityType"`

	IsClosed           bool `json:"isClosed"`
	IsUploaded         bool `json:"isUploaded"`
	IsSummaryUploaded  bool `json:"isSummaryUploaded"`
	WasStoppedManually bool `json:"wasStoppedManually,omitempty"`

	// Length is meters, computed on close.
	Length float64 `json:"length"`
	Rating int     `json:"rating,omitempty"`

	// LastSyncError is the most recent upload failure, cleared on success.
	LastSyncError string `json:"lastSyncError,omitempty"`

	InProgressLength        float64            `json:"inProgressLength"`
	LastInProgressLocation  *location.Location `json:"lastInProgressLocation,omitempty"`
	LastLocationUpdateCount int                `json:"lastLocationUpdateCount"`

	StartPlace string `json:"startPlace,omitempty"`
	EndPlace   string `json:"endPlace,omitempty"`

	// Locations are kept in non-decreasing date order.
	Locations     []*location.Location      `json:"locations"`
	AggregatorIDs []conceptual.AggregatorID `json:"aggregatorIDs,omitempty"`
}

// New returns an unsaved, open route.
func New(now time.Time) *Route {
	return &Route{
		UUID:                    conceptual.NewRouteUUID(),
		CreationDate:            now,
		LastLocationUpdateCount: -1,
	}
}

func (r *Route) GenerateUUID() {
	r.UUID = conceptual.NewRouteUUID()
}

// AddLocations inserts locations in date order.
// Locations sharing a date with existing ones go after them.
func (r *Route) AddLocations(locs ...*location.Location) {
	for _, l := range locs {
		i := len(r.Locations)
		for i > 0 && r.Locations[i-1].Date.After(l.Date) {
			i--
		}
		r.Locations = slices.Insert(r.Locations, i, l)
	}
}

func (r *Route) LocationCount() int {
	return len(r.Locations)
}

func (r *Route) MostRecentLocation() *location.Location {
	if len(r.Locations) == 0 {
		return nil
	}
	return r.Locations[len(r.Locations)-1]
}

// FirstLocation returns the earliest location. Unless includeCopied,
// locations copied from geofences or the previous route are skipped.
func (r *Route) FirstLocation(includeCopied bool) *location.Location {
	for _, l := range r.Locations {
		if includeCopied || !l.Source.IsCopied() {
			return l
		}
	}
	return nil
}

func (r *Route) StartDate() time.Time {
	if l := r.FirstLocation(false); l != nil {
		return l.Date
	}
	return r.CreationDate
}

func (r *Route) EndDate() time.Time {
	if l := r.MostRecentLocation(); l != nil {
		return l.Date
	}
	return r.CreationDate
}

func (r *Route) Duration() time.Duration {
	d := r.EndDate().Sub(r.StartDate())
	if d < 0 {
		return -d
	}
	return d
}

// OrderedLocations filters the route's locations.
func (r *Route) OrderedLocations(simplified, includingInferred bool) []*location.Location {
	out := make([]*location.Location, 0, len(r.Locations))
	for _, l := range r.Locations {
		if simplified && !l.Simplified {
			continue
		}
		if !includingInferred && l.Source.IsInferred() {
			continue
		}
		out = append(out, l)
	}
	return out
}

// UsableLocations are those accurate enough to count toward length
// and to be considered for simplification.
func (r *Route) UsableLocations(acceptableAccuracy float64) []*location.Location {
	out := make([]*location.Location, 0, len(r.Locations))
	for _, l := range r.Locations {
		if l.IsAccurate(acceptableAccuracy) {
			out = append(out, l)
		}
	}
	return out
}

// HasSimplified reports whether any location is in the simplified subset.
func (r *Route) HasSimplified() bool {
	return slices.ContainsFunc(r.Locations, func(l *location.Location) bool { return l.Simplified })
}

// Simplify recomputes the simplified subset from the usable locations.
func (r *Route) Simplify(config *params.RouteConfig) {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	simplify.Reset(r.Locations)
	usable := r.UsableLocations(config.AcceptableLocationAccuracy)
	if len(usable) == 0 {
		return
	}
	simplify.Simplify(usable, config.SimplificationEpsilon)
}

// CalculateLength sets Length.
// Cycling routes sum the distances between consecutive usable locations.
// Other modes use the straight line from the first to the last location.
func (r *Route) CalculateLength(config *params.RouteConfig) {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	if r.Activity != activity.Cycling {
		first, last := r.FirstLocation(true), r.MostRecentLocation()
		if first == nil || last == nil {
			r.Length = 0
			return
		}
		r.Length = first.DistanceTo(last)
		return
	}

	length := 0.0
	var prev *location.Location
	for _, l := range r.UsableLocations(config.AcceptableLocationAccuracy) {
		if prev != nil {
			length += prev.DistanceTo(l)
		}
		prev = l
	}
	r.Length = length
}

// CloseVerdict reports whether the route is fit to close.
// When it is not, reason says why and the route should be canceled instead.
// Length is computed as a side effect once the location counts pass.
func (r *Route) CloseVerdict(config *params.RouteConfig) (ok bool, reason string) {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	n := r.LocationCount()
	if n <= config.MinimumLocationsToClose {
		return false, "too few locations"
	}
	if r.Activity.IsMotorized() && n <= config.MinimumMotorizedLocationsToClose {
		return false, "too few motorized locations"
	}
	r.CalculateLength(config)
	if r.Activity.IsMotorized() && r.Length < config.MinimumMotorizedLength {
		return false, "motorized route too short"
	}
	return true, ""
}

// MarkClosed finalizes an accepted route.
func (r *Route) MarkClosed(config *params.RouteConfig, now time.Time) {
	r.Simplify(config)
	r.IsClosed = true
	r.ClosedDate = now
}

// ResetForReopen makes a closed route open again.
func (r *Route) ResetForReopen() {
	r.IsClosed = false
	r.ClosedDate = time.Time{}
	r.LastLocationUpdateCount = -1
	r.IsUploaded = false
	r.IsSummaryUploaded = false
	simplify.Reset(r.Locations)
}

// UpdateInProgressLength adds the distance covered since the last update.
// When intermittently is set, updates happen only every `every` locations.
// It returns true if the length changed.
func (r *Route) UpdateInProgressLength(intermittently bool, every int) bool {
	n := r.LocationCount()
	due := !intermittently || r.LastLocationUpdateCount == -1 || abs(n-r.LastLocationUpdateCount) > every
	if !due {
		return false
	}
	this := r.MostRecentLocation()
	if this == nil {
		return false
	}
	if r.LastInProgressLocation == nil {
		r.LastInProgressLocation = this
		return false
	}
	r.LastLocationUpdateCount = n
	r.InProgressLength += r.LastInProgressLocation.DistanceTo(this)
	r.LastInProgressLocation = this
	return true
}

// SummaryLocations are what a summary upload sends: the simplified
// subset for closed cycling routes, otherwise every location.
func (r *Route) SummaryLocations(config *params.RouteConfig) []*location.Location {
	if r.Activity != activity.Cycling || !r.IsClosed {
		return r.OrderedLocations(false, true)
	}
	if !r.HasSimplified() && r.LocationCount() > 0 {
		r.Simplify(config)
	}
	return r.OrderedLocations(true, true)
}

// ClosestLocationTo returns the location nearest p, or nil for an empty route.
func (r *Route) ClosestLocationTo(p orb.Point) *location.Location {
	var closest *location.Location
	best := math.MaxFloat64
	for _, l := range r.Locations {
		if d := common.DistanceMeters(p, l.Point()); d < best {
			best, closest = d, l
		}
	}
	return closest
}

// AttachAggregator records that an aggregator's evidence belongs to the route.
func (r *Route) AttachAggregator(id conceptual.AggregatorID) {
	if !slices.Contains(r.AggregatorIDs, id) {
		r.AggregatorIDs = append(r.AggregatorIDs, id)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
