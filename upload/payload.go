package upload

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

// Round rounds v to places decimal places, as a decimal rather than a binary fraction.
func Round(v float64, places int32) float64 {
	return common.RoundDecimal(v, places).InexactFloat64()
}

type LocationPayload struct {
	Date               string          `json:"date"`
	Latitude           float64         `json:"latitude"`
	Longitude          float64         `json:"longitude"`
	Course             float64         `json:"course"`
	Speed              float64         `json:"speed"`
	HorizontalAccuracy float64         `json:"horizontalAccuracy"`
	VerticalAccuracy   float64         `json:"verticalAccuracy"`
	Altitude           float64         `json:"altitude"`
	Source             location.Source `json:"source"`
}

type SummaryPayload struct {
	Locations []LocationPayload `json:"locations"`
}

// RoutePayload is the body of a trip PUT.
// Exactly one of SummaryLocations and Locations is set.
type RoutePayload struct {
	ActivityType     activity.Type     `json:"activityType"`
	CreationDate     string            `json:"creationDate"`
	SummaryLocations *SummaryPayload   `json:"summaryLocations,omitempty"`
	Locations        []LocationPayload `json:"locations,omitempty"`
	Length           float64           `json:"length"`
}

func NewLocationPayload(l *location.Location, precision int32) LocationPayload {
	return LocationPayload{
		Date:               l.Date.UTC().Format("2006-01-02T15:04:05.000Z"),
		Latitude:           Round(l.Latitude, precision),
		Longitude:          Round(l.Longitude, precision),
		Course:             Round(l.Course, 2),
		Speed:              Round(l.Speed, 2),
		HorizontalAccuracy: Round(l.HorizontalAccuracy, 2),
		VerticalAccuracy:   Round(l.VerticalAccuracy, 2),
		Altitude:           Round(l.Altitude, 2),
		Source:             l.Source,
	}
}

// NewRoutePayload builds the trip body: the summary (simplified) locations,
// or with full set, every location including inferred ones.
func NewRoutePayload(r *route.Route, full bool, routeConfig *params.RouteConfig, precision int32) (*RoutePayload, error) {
	if routeConfig == nil {
		routeConfig = params.DefaultRouteConfig
	}
	p := &RoutePayload{
		ActivityType: r.Activity,
		CreationDate: r.CreationDate.UTC().Format(time.RFC3339),
		Length:       Round(r.Length, 1),
	}
	if !full {
		locs := r.SummaryLocations(routeConfig)
		if len(locs) == 0 {
			return nil, ErrNoLocations
		}
		p.SummaryLocations = &SummaryPayload{Locations: make([]LocationPayload, 0, len(locs))}
		for _, l := range locs {
			p.SummaryLocations.Locations = append(p.SummaryLocations.Locations, NewLocationPayload(l, precision))
		}
		return p, nil
	}
	locs := r.OrderedLocations(false, true)
	if len(locs) == 0 {
		return nil, ErrNoLocations
	}
	p.Locations = make([]LocationPayload, 0, len(locs))
	for _, l := range locs {
		p.Locations = append(p.Locations, NewLocationPayload(l, precision))
	}
	return p, nil
}
