package route

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature renders the route as a GeoJSON LineString.
// Closed routes use their simplified subset when they have one.
func (r *Route) Feature(config *params.RouteConfig) *geojson.Feature {
	if config == nil {
		config = params.DefaultRouteConfig
	}
	locs := r.OrderedLocations(false, true)
	if r.IsClosed && r.HasSimplified() {
		locs = r.OrderedLocations(true, true)
	}
	ls := make(orb.LineString, 0, len(locs))
	for _, l := range locs {
		ls = append(ls, l.Point())
	}
	f := geojson.NewFeature(ls)
	f.ID = r.UUID

	f.Properties["Activity"] = r.Activity.String()
	f.Properties["IsClosed"] = r.IsClosed
	f.Properties["IsSummaryUploaded"] = r.IsSummaryUploaded
	f.Properties["RawPointCount"] = r.LocationCount()
	f.Properties["Time_Start_RFC3339"] = r.StartDate().Format(time.RFC3339)
	f.Properties["Time_End_RFC3339"] = r.EndDate().Format(time.RFC3339)
	f.Properties["Duration"] = r.Duration().Round(time.Second).Seconds()
	f.Properties["Length"] = common.RoundDecimal(r.Length, 0).InexactFloat64()

	speeds := r.SpeedStats(config)
	f.Properties["Speed_Mean"] = common.RoundDecimal(speeds.Mean, 2).InexactFloat64()
	f.Properties["Speed_Median"] = common.RoundDecimal(speeds.Median, 2).InexactFloat64()
	f.Properties["Speed_P90"] = common.RoundDecimal(speeds.P90, 2).InexactFloat64()
	f.Properties["Speed_Max"] = common.RoundDecimal(speeds.Max, 2).InexactFloat64()
	f.Properties["Speed_AverageMoving"] = common.RoundDecimal(r.AverageMovingSpeed(config), 2).InexactFloat64()

	if r.StartPlace != "" {
		f.Properties["StartPlace"] = r.StartPlace
	}
	if r.EndPlace != "" {
		f.Properties["EndPlace"] = r.EndPlace
	}
	return f
}
