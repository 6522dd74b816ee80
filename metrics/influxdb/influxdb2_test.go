package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

func testRoute(start time.Time, closed bool) *route.Route {
	rt := route.New(start)
	for i := 0; i < 10; i++ {
		rt.AddLocations(&location.Location{
			Date:               start.Add(time.Duration(i) * 10 * time.Second),
			Latitude:           45.5 + float64(i)*0.0005,
			Longitude:          -122.6,
			Speed:              5,
			HorizontalAccuracy: 5,
			Source:             location.SourceActiveGPS,
		})
	}
	rt.Activity = activity.Cycling
	rt.CalculateLength(nil)
	rt.IsClosed = closed
	return rt
}

func TestExportRoutes(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		query = r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	start := time.Date(2024, 7, 4, 9, 0, 0, 0, time.UTC)
	closed := testRoute(start, true)
	closed.EndPlace = "Home"
	open := testRoute(start.Add(time.Hour), false)

	cfg := &params.InfluxConfig{URL: srv.URL, Token: "tok", Org: "ride", Bucket: "routes", Precision: time.Second}
	if err := ExportRoutes(context.Background(), cfg, nil, []*route.Route{closed, open}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	all := strings.Join(bodies, "")
	lines := strings.Split(strings.TrimSpace(all), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), all)
	}
	line := lines[0]
	for _, want := range []string{"route,", "uuid=" + closed.UUID, "locations=10i", `end_place="Home"`} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(all, open.UUID) {
		t.Error("open route exported")
	}
	if !strings.HasSuffix(line, " 1720083600") {
		t.Errorf("line not stamped at route start in seconds: %q", line)
	}
	if !strings.Contains(query, "bucket=routes") {
		t.Errorf("query = %q", query)
	}
}

func TestExportRoutesNotConfigured(t *testing.T) {
	err := ExportRoutes(context.Background(), &params.InfluxConfig{}, nil, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if err := ExportRoutes(context.Background(), nil, nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil config err = %v", err)
	}
}
