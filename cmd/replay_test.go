package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/catdb/flat"
	"github.com/RideReport/RideRecorderApp-sub003/replay"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/spf13/viper"
)

func writeRideGZ(t *testing.T, path string) {
	t.Helper()
	base := time.Date(2024, 6, 2, 17, 30, 0, 0, time.UTC)
	gzw, err := flat.NewGZWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := json.NewEncoder(gzw.Writer())
	fixes := make([]location.Fix, 30)
	for i := range fixes {
		fixes[i] = location.Fix{
			Timestamp:          base.Add(time.Duration(i) * time.Second),
			Latitude:           45.52 + float64(i)*0.00005,
			Longitude:          -122.65,
			Course:             -1,
			Speed:              5,
			HorizontalAccuracy: 5,
		}
	}
	for _, l := range []replay.Line{
		{Type: replay.TypeLocations, Fixes: fixes[:1]},
		{Type: replay.TypeLocations, Fixes: fixes[1:]},
		{Type: replay.TypeStop, Date: base.Add(time.Minute)},
	} {
		if err := enc.Encode(l); err != nil {
			t.Fatal(err)
		}
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReplayCommand(t *testing.T) {
	viper.Set("gateway", "none")
	t.Cleanup(func() { viper.Set("gateway", "http") })

	path := filepath.Join(t.TempDir(), "ride.ndjson.gz")
	writeRideGZ(t, path)

	in, closeIn, err := openReplayInput([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	defer closeIn()

	store, err := state.Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	summary, err := runReplay(context.Background(), store, in)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Events != 3 || summary.Closed != 1 {
		t.Errorf("events=%d closed=%d", summary.Events, summary.Closed)
	}
	routes, err := store.Routes(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || !routes[0].WasStoppedManually {
		t.Fatalf("routes = %d", len(routes))
	}
}

func TestOpenReplayInput_stdin(t *testing.T) {
	in, closeIn, err := openReplayInput([]string{"-"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeIn()
	if in != io.Reader(os.Stdin) {
		t.Fatal("expected stdin")
	}
}

func TestNewGateway(t *testing.T) {
	t.Cleanup(func() { viper.Set("gateway", "http") })
	viper.Set("gateway", "carrier-pigeon")
	if _, err := newGateway(uploadConfig()); err == nil {
		t.Error("expected an error for an unknown gateway")
	}
	viper.Set("gateway", "none")
	if gw, err := newGateway(uploadConfig()); err != nil || gw != nil {
		t.Errorf("none gateway = %v, %v", gw, err)
	}
	viper.Set("gateway", "http")
	if gw, err := newGateway(uploadConfig()); err != nil || gw == nil {
		t.Errorf("http gateway = %v, %v", gw, err)
	}
}
