package location

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/paulmach/orb"
)

// Source tags where a Location came from.
//
//   - Unknown: default value.
//   - ActiveGPS: received while high-accuracy tracking is on.
//   - Passive: received during low-power monitoring.
//   - Geofence: center of a geofence, created when the geofence fires.
//   - VisitArrival: from a visit arrival; the timestamp is estimated.
//   - VisitDeparture: from a visit departure; anchors a route's start.
//   - LastRouteArrival: copied from the end of the last route. Its timestamp should be ignored.
type Source int

const (
	SourceUnknown Source = iota
	SourceActiveGPS
	SourcePassive
	SourceGeofence
	SourceVisitArrival
	SourceVisitDeparture
	SourceLastRouteArrival
)

// InferredSources are synthesized rather than measured.
var InferredSources = []Source{
	SourceUnknown, SourceGeofence, SourceVisitArrival, SourceVisitDeparture, SourceLastRouteArrival,
}

func (s Source) IsInferred() bool {
	return s != SourceActiveGPS && s != SourcePassive
}

// IsCopied is true for sources whose timestamp does not mark a route's real start.
func (s Source) IsCopied() bool {
	return s == SourceGeofence || s == SourceLastRouteArrival
}

func (s Source) String() string {
	switch s {
	case SourceActiveGPS:
		return "Active GPS"
	case SourcePassive:
		return "Passive"
	case SourceGeofence:
		return "Geofence"
	case SourceVisitArrival:
		return "Visit Arrival"
	case SourceVisitDeparture:
		return "Visit Departure"
	case SourceLastRouteArrival:
		return "Last Route Arrival"
	}
	return "Unknown"
}

// Location is a single point-in-time observation.
// Speed and Course are negative when the provider did not report them.
type Location struct {
	Date               time.Time `json:"date"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Course             float64   `json:"course"`
	Speed              float64   `json:"speed"`
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
	VerticalAccuracy   float64   `json:"verticalAccuracy"`
	Altitude           float64   `json:"altitude"`
	Source             Source    `json:"source"`

	// Simplified marks membership in the owning route's simplified subset.
	Simplified bool `json:"simplified,omitempty"`
}

// Fix is a raw location delivered by a location provider.
type Fix struct {
	Timestamp          time.Time `json:"timestamp"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Course             float64   `json:"course"`
	Speed              float64   `json:"speed"`
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
	VerticalAccuracy   float64   `json:"verticalAccuracy"`
	Altitude           float64   `json:"altitude"`
}

func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// CalculatedSpeedFrom returns distance/time between two fixes,
// or -1 when they share a timestamp.
func (f Fix) CalculatedSpeedFrom(other Fix) float64 {
	dt := math.Abs(f.Timestamp.Sub(other.Timestamp).Seconds())
	if dt == 0 {
		return -1.0
	}
	return common.DistanceMeters(f.Point(), other.Point()) / dt
}

// Visit is a place the provider decided the user stayed at.
// A zero DepartureDate means the user has arrived but not yet left.
type Visit struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
	ArrivalDate        time.Time `json:"arrivalDate"`
	DepartureDate      time.Time `json:"departureDate"`
}

func (v Visit) IsArrival() bool {
	return v.DepartureDate.IsZero()
}

// FromFix records a provider fix.
func FromFix(f Fix, isActiveGPS bool) *Location {
	src := SourcePassive
	if isActiveGPS {
		src = SourceActiveGPS
	}
	return &Location{
		Date:               f.Timestamp,
		Latitude:           f.Latitude,
		Longitude:          f.Longitude,
		Course:             f.Course,
		Speed:              f.Speed,
		HorizontalAccuracy: f.HorizontalAccuracy,
		VerticalAccuracy:   f.VerticalAccuracy,
		Altitude:           f.Altitude,
		Source:             src,
	}
}

// FromVisit synthesizes an arrival or departure location.
func FromVisit(v Visit, isArriving bool) *Location {
	l := &Location{
		Latitude:           v.Latitude,
		Longitude:          v.Longitude,
		HorizontalAccuracy: v.HorizontalAccuracy,
		Course:             -1.0,
		Speed:              -1.0,
	}
	if isArriving {
		l.Source = SourceVisitArrival
		l.Date = v.ArrivalDate
	} else {
		l.Source = SourceVisitDeparture
		l.Date = v.DepartureDate
	}
	return l
}

// FromLastArrival copies the previous route's final location as a start anchor.
func FromLastArrival(last *Location) *Location {
	cp := *last
	cp.Source = SourceLastRouteArrival
	cp.Simplified = false
	return &cp
}

func (l *Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// Fix returns the location as a provider fix.
func (l *Location) Fix() Fix {
	return Fix{
		Timestamp:          l.Date,
		Latitude:           l.Latitude,
		Longitude:          l.Longitude,
		Course:             l.Course,
		Speed:              l.Speed,
		HorizontalAccuracy: l.HorizontalAccuracy,
		VerticalAccuracy:   l.VerticalAccuracy,
		Altitude:           l.Altitude,
	}
}

// DistanceTo returns meters to another location.
func (l *Location) DistanceTo(other *Location) float64 {
	return common.DistanceMeters(l.Point(), other.Point())
}

// Since returns the time elapsed from other to l.
func (l *Location) Since(other *Location) time.Duration {
	return l.Date.Sub(other.Date)
}

// IsAccurate reports whether the location may count toward length and speed.
// Only active GPS fixes are held to the accuracy bound.
func (l *Location) IsAccurate(acceptable float64) bool {
	return l.HorizontalAccuracy <= acceptable || l.Source != SourceActiveGPS
}

func (l *Location) String() string {
	return fmt.Sprintf("%s %0.5f, %0.5f %0.2f m/s (%s)",
		l.Date.Format(time.RFC3339), l.Longitude, l.Latitude, l.Speed, l.Source)
}

// UnmarshalJSON accepts the legacy isGeofencedLocation flag in place of source.
func (l *Location) UnmarshalJSON(data []byte) error {
	type alias Location
	aux := struct {
		*alias
		Source              *Source `json:"source"`
		IsGeofencedLocation *bool   `json:"isGeofencedLocation"`
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Source != nil:
		l.Source = *aux.Source
	case aux.IsGeofencedLocation != nil:
		if *aux.IsGeofencedLocation {
			l.Source = SourceGeofence
		} else {
			l.Source = SourceActiveGPS
		}
	default:
		slog.Debug("Location without source", "date", l.Date)
		l.Source = SourceUnknown
	}
	return nil
}
