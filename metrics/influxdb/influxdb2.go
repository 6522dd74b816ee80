package influxdb

import (
	"context"
	"errors"
	"sync"

	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/stream"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var ErrNotConfigured = errors.New("influxdb not configured")

// ExportRoutes posts one point per closed route to an InfluxDB Write API.
// Open routes are skipped. The Write API buffers and flushes.
// The last error encountered is returned.
func ExportRoutes(ctx context.Context, config *params.InfluxConfig, routeConfig *params.RouteConfig, routes []*route.Route) error {
	if !config.Enabled() {
		return ErrNotConfigured
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(config.Precision)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	writeAPI := client.WriteAPI(config.Org, config.Bucket)

	// Errors must be read before any writes, and drained,
	// or the writer blocks.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	closed := stream.Filter(ctx, func(rt *route.Route) bool {
		return rt.IsClosed
	}, stream.Slice(ctx, routes))
	points := stream.Transform(ctx, func(rt *route.Route) *write.Point {
		return RoutePoint(rt, routeConfig)
	}, closed)
	for p := range points {
		writeAPI.WritePoint(p)
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// RoutePoint is the "route" measurement for a closed route, stamped at its start.
func RoutePoint(rt *route.Route, routeConfig *params.RouteConfig) *write.Point {
	speeds := rt.SpeedStats(routeConfig)
	p := influxdb2.NewPointWithMeasurement("route").
		SetTime(rt.StartDate()).
		AddTag("uuid", rt.UUID).
		AddTag("activity", rt.Activity.String()).
		AddField("length", rt.Length).
		AddField("duration", rt.Duration().Seconds()).
		AddField("locations", rt.LocationCount()).
		AddField("speed_mean", speeds.Mean).
		AddField("speed_median", speeds.Median).
		AddField("speed_p90", speeds.P90).
		AddField("speed_max", speeds.Max)
	if rt.WasStoppedManually {
		p.AddField("stopped_manually", 1)
	}
	if rt.StartPlace != "" {
		p.AddField("start_place", rt.StartPlace)
	}
	if rt.EndPlace != "" {
		p.AddField("end_place", rt.EndPlace)
	}
	return p
}
