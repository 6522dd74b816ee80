package route

import (
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/montanaflynn/stats"
)

// speedSample returns the measured locations speeds are averaged over.
// Closed routes use their simplified subset. Open routes have none yet,
// so every measured location is used.
func (r *Route) speedSample() []*location.Location {
	if r.HasSimplified() {
		return r.OrderedLocations(true, false)
	}
	return r.OrderedLocations(false, false)
}

func (r *Route) meanSpeedAbove(floor, acceptableAccuracy float64) float64 {
	data := stats.Float64Data{}
	for _, l := range r.speedSample() {
		if l.Speed > floor && l.HorizontalAccuracy <= acceptableAccuracy {
			data = append(data, l.Speed)
		}
	}
	if len(data) == 0 {
		return 0
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return mean
}

// AverageMovingSpeed is the mean reported speed of accurate fixes above the moving floor.
func (r *Route) AverageMovingSpeed(config *params.RouteConfig) float64 {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	return r.meanSpeedAbove(config.MinimumMovingSpeed, config.AcceptableLocationAccuracy)
}

// AverageSpeed is the mean reported speed of accurate fixes with any positive speed.
func (r *Route) AverageSpeed(config *params.RouteConfig) float64 {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	return r.meanSpeedAbove(0, config.AcceptableLocationAccuracy)
}

// ApproximateAverageBikingSpeed ignores the slow fixes of walking a bike.
func (r *Route) ApproximateAverageBikingSpeed(config *params.RouteConfig) float64 {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	return r.meanSpeedAbove(config.MinimumBikingSpeed, config.AcceptableLocationAccuracy)
}

// AggregateRoughSpeed is straight-line distance over elapsed time,
// from the first real location to the last.
func (r *Route) AggregateRoughSpeed() float64 {
	first, last := r.FirstLocation(false), r.MostRecentLocation()
	if first == nil || last == nil {
		return 0
	}
	secs := r.EndDate().Sub(first.Date).Seconds()
	if secs == 0 {
		return 0
	}
	return first.DistanceTo(last) / secs
}

// SpeedStats summarizes the reported speeds of accurate measured fixes.
type SpeedStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

func (r *Route) SpeedStats(config *params.RouteConfig) SpeedStats {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	data := stats.Float64Data{}
	for _, l := range r.OrderedLocations(false, false) {
		if l.Speed >= 0 && l.HorizontalAccuracy <= config.AcceptableLocationAccuracy {
			data = append(data, l.Speed)
		}
	}
	must := func(v float64, err error) float64 {
		if err != nil {
			return 0
		}
		return v
	}
	return SpeedStats{
		Mean:   must(stats.Mean(data)),
		Median: must(stats.Median(data)),
		P90:    must(stats.Percentile(data, 90)),
		Max:    must(stats.Max(data)),
	}
}
