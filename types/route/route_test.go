package route

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// metersNorth is roughly how many degrees of latitude make a meter.
const metersNorth = 1.0 / 111_195.0

// straightRoute returns a route of n fixes heading north, spaced
// stepMeters apart every second.
func straightRoute(mode activity.Type, n int, stepMeters float64, speed float64) *Route {
	r := New(t0)
	r.Activity = mode
	for i := 0; i < n; i++ {
		r.AddLocations(&location.Location{
			Date:               t0.Add(time.Duration(i) * time.Second),
			Latitude:           45 + float64(i)*stepMeters*metersNorth,
			Longitude:          -122,
			Speed:              speed,
			HorizontalAccuracy: 5,
			Source:             location.SourceActiveGPS,
		})
	}
	return r
}

func TestRoute_AddLocations_ordered(t *testing.T) {
	r := New(t0)
	for _, sec := range []int{5, 1, 3, 3, 0, 9} {
		r.AddLocations(&location.Location{Date: t0.Add(time.Duration(sec) * time.Second)})
	}
	for i := 1; i < len(r.Locations); i++ {
		if r.Locations[i].Date.Before(r.Locations[i-1].Date) {
			t.Fatalf("locations out of order at %d", i)
		}
	}
	if !r.EndDate().Equal(t0.Add(9 * time.Second)) {
		t.Errorf("have %v want end +9s", r.EndDate())
	}
}

func TestRoute_StartDate_skipsCopied(t *testing.T) {
	r := straightRoute(activity.Cycling, 3, 10, 5)
	anchor := location.FromLastArrival(r.Locations[0])
	anchor.Date = t0.Add(-time.Hour)
	r.AddLocations(anchor)

	if r.FirstLocation(true) != anchor {
		t.Error("copied location should come first when included")
	}
	if !r.StartDate().Equal(t0) {
		t.Errorf("have %v want %v", r.StartDate(), t0)
	}

	empty := New(t0.Add(time.Minute))
	if !empty.StartDate().Equal(empty.CreationDate) || !empty.EndDate().Equal(empty.CreationDate) {
		t.Error("empty route dates should fall back to creation date")
	}
}

func TestRoute_CalculateLength(t *testing.T) {
	// Cycling: sum along the path, ignoring inaccurate GPS fixes.
	r := straightRoute(activity.Cycling, 11, 10, 5)
	r.Locations[5].HorizontalAccuracy = 65
	r.Locations[5].Longitude = -121.9 // a wild fix, far off the line
	r.CalculateLength(nil)
	if math.Abs(r.Length-100) > 1 {
		t.Errorf("have %f want ~100", r.Length)
	}

	// Walking: straight line from start to end.
	w := straightRoute(activity.Walking, 11, 10, 1)
	w.Locations[5].Longitude = -121.99
	w.CalculateLength(nil)
	if math.Abs(w.Length-100) > 1 {
		t.Errorf("have %f want ~100", w.Length)
	}
}

func TestRoute_CloseVerdict(t *testing.T) {
	cases := []struct {
		name string
		r    *Route
		want bool
	}{
		{"single location", straightRoute(activity.Cycling, 1, 10, 5), false},
		{"two cycling locations", straightRoute(activity.Cycling, 2, 10, 5), true},
		{"two motorized locations", straightRoute(activity.Automotive, 2, 500, 15), false},
		{"motorized 200m", straightRoute(activity.Automotive, 5, 50, 15), false},
		{"motorized 300m", straightRoute(activity.Bus, 4, 100, 15), true},
		{"short walk", straightRoute(activity.Walking, 3, 1, 1), true},
	}
	for _, c := range cases {
		ok, reason := c.r.CloseVerdict(params.DefaultRouteConfig)
		if ok != c.want {
			t.Errorf("%s: have %v (%s) want %v, length=%f", c.name, ok, reason, c.want, c.r.Length)
		}
	}
}

func TestRoute_MarkClosedAndReopen(t *testing.T) {
	r := straightRoute(activity.Cycling, 30, 10, 5)
	r.IsUploaded, r.IsSummaryUploaded = true, true
	r.MarkClosed(nil, t0.Add(time.Hour))
	if !r.IsClosed || !r.HasSimplified() {
		t.Fatal("closed route should be simplified")
	}
	// A straight line simplifies to its endpoints.
	if n := len(r.OrderedLocations(true, true)); n != 2 {
		t.Errorf("have %d simplified want 2", n)
	}

	r.ResetForReopen()
	if r.IsClosed || r.IsUploaded || r.IsSummaryUploaded || r.HasSimplified() {
		t.Errorf("reopen should clear flags: %+v", r)
	}
	if r.LastLocationUpdateCount != -1 {
		t.Errorf("have %d want -1", r.LastLocationUpdateCount)
	}
}

func TestRoute_SummaryLocations(t *testing.T) {
	r := straightRoute(activity.Cycling, 30, 10, 5)
	if got := len(r.SummaryLocations(nil)); got != 30 {
		t.Errorf("open route: have %d want 30", got)
	}
	r.IsClosed = true // closed without simplifying, eg. by an older build
	if got := len(r.SummaryLocations(nil)); got != 2 {
		t.Errorf("closed cycling route: have %d want 2", got)
	}
	w := straightRoute(activity.Walking, 30, 1, 1)
	w.MarkClosed(nil, t0)
	if got := len(w.SummaryLocations(nil)); got != 30 {
		t.Errorf("closed walking route: have %d want 30", got)
	}
}

func TestRoute_Speeds(t *testing.T) {
	r := straightRoute(activity.Cycling, 10, 5, 5)
	r.Locations[0].Speed = 0.1 // idle
	r.Locations[1].Speed = 0.5 // walking the bike
	r.Locations[2].Speed = 9
	r.Locations[2].HorizontalAccuracy = 100 // ignored

	// 0.5 + 7*5 over 8 fixes.
	if got, want := r.AverageMovingSpeed(nil), 35.5/8; math.Abs(got-want) > 1e-9 {
		t.Errorf("moving: have %f want %f", got, want)
	}
	// 0.1 + 0.5 + 7*5 over 9 fixes.
	if got, want := r.AverageSpeed(nil), 35.6/9; math.Abs(got-want) > 1e-9 {
		t.Errorf("average: have %f want %f", got, want)
	}
	if got := r.ApproximateAverageBikingSpeed(nil); got != 5 {
		t.Errorf("biking: have %f want 5", got)
	}
	if got := r.AggregateRoughSpeed(); math.Abs(got-5) > 0.05 {
		t.Errorf("rough: have %f want ~5", got)
	}
	if New(t0).AverageMovingSpeed(nil) != 0 {
		t.Error("empty route has no speed")
	}
}

func TestRoute_UpdateInProgressLength(t *testing.T) {
	r := straightRoute(activity.Cycling, 1, 10, 5)
	if r.UpdateInProgressLength(true, 10) {
		t.Error("first call only records the anchor")
	}
	for i := 1; i <= 5; i++ {
		r.AddLocations(&location.Location{
			Date: t0.Add(time.Duration(i) * time.Second), Latitude: 45 + float64(i)*10*metersNorth, Longitude: -122,
		})
	}
	if !r.UpdateInProgressLength(true, 10) {
		t.Fatal("expected update after reset count")
	}
	if math.Abs(r.InProgressLength-50) > 1 {
		t.Errorf("have %f want ~50", r.InProgressLength)
	}
	r.AddLocations(&location.Location{Date: t0.Add(6 * time.Second), Latitude: 45 + 60*metersNorth, Longitude: -122})
	if r.UpdateInProgressLength(true, 10) {
		t.Error("intermittent update should wait for more locations")
	}
	if !r.UpdateInProgressLength(false, 10) {
		t.Error("forced update should run")
	}
}

func TestRoute_ClosestLocationTo(t *testing.T) {
	r := straightRoute(activity.Cycling, 10, 100, 5)
	target := r.Locations[6].Point()
	target[0] += 0.0001
	if got := r.ClosestLocationTo(target); got != r.Locations[6] {
		t.Errorf("have %v want %v", got, r.Locations[6])
	}
	if New(t0).ClosestLocationTo(orb.Point{}) != nil {
		t.Error("empty route has no closest location")
	}
}

func TestRoute_Feature(t *testing.T) {
	r := straightRoute(activity.Cycling, 20, 10, 5)
	r.MarkClosed(nil, t0)
	r.CalculateLength(nil)
	b, err := json.Marshal(r.Feature(nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(b, "geometry.coordinates.#").Int(); got != 2 {
		t.Errorf("have %d coordinates want 2", got)
	}
	if got := gjson.GetBytes(b, "properties.Activity").String(); got != "Cycling" {
		t.Errorf("have %q want Cycling", got)
	}
	if got := gjson.GetBytes(b, "properties.Length").Float(); math.Abs(got-190) > 2 {
		t.Errorf("have %f want ~190", got)
	}
}

func TestRoute_JSON(t *testing.T) {
	r := straightRoute(activity.Walking, 3, 10, 1)
	r.AttachAggregator("agg-1")
	r.AttachAggregator("agg-1")
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Route
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.UUID != r.UUID || back.LocationCount() != 3 || len(back.AggregatorIDs) != 1 {
		t.Errorf("have %+v", back)
	}
}
