/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/catdb/flat"
	"github.com/RideReport/RideRecorderApp-sub003/classifier"
	"github.com/RideReport/RideRecorderApp-sub003/common"
	"github.com/RideReport/RideRecorderApp-sub003/daemon/statusd"
	"github.com/RideReport/RideRecorderApp-sub003/geo/placename"
	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/manager"
	"github.com/RideReport/RideRecorderApp-sub003/metrics/influxdb"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/provider"
	"github.com/RideReport/RideRecorderApp-sub003/recorder"
	"github.com/RideReport/RideRecorderApp-sub003/replay"
	"github.com/RideReport/RideRecorderApp-sub003/state"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	optReplayModelDir      string
	optReplayTemplates     string
	optReplayAuthorization string
	optReplayBattery       float64
	optReplayBatteryFloor  float64
	optReplayDeferral      bool
	optReplayPlaces        bool
	optReplayInflux        bool
	optReplayStatusd       string
	optReplayMeter         time.Duration
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [events.ndjson[.gz] | -]",
	Short: "Run the recorder over a recorded event log",
	Long: `Replay feeds an NDJSON event log through the trip state machine.

Each line is one platform event, eg.

  {"type":"locations","fixes":[{"timestamp":"2024-06-02T17:30:00Z","latitude":45.52,"longitude":-122.65,"speed":5,"course":-1,"horizontalAccuracy":5}]}
  {"type":"visit","visit":{"latitude":45.52,"longitude":-122.65,"arrivalDate":"2024-06-02T18:00:00Z"}}
  {"type":"accelerometer","readings":[{"date":"...","x":0.1,"y":0.0,"z":-0.98}]}
  {"type":"battery","date":"...","level":0.15}
  {"type":"authorization","date":"...","authorization":"whenInUse"}
  {"type":"deferred","date":"...","error":"canceled"}
  {"type":"pause","date":"...","until":"..."}   {"type":"resume"}   {"type":"stop"}   {"type":"abort"}

The simulated clock follows the event dates. Routes land in the store under --datadir.

Classification uses the random forest model in --model, fed by accelerometer events,
or else the scripted --templates, eg. "cycling:0.9,walking:0.6".

Examples:

  riderecorder replay --templates cycling:0.9 --gateway none ride.ndjson
  zcat day.ndjson.gz | riderecorder replay --model ./model --statusd localhost:3030 -
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, cancel := common.InterruptContext(context.Background())
		defer cancel()

		in, closeIn, err := openReplayInput(args)
		if err != nil {
			log.Fatalln(err)
		}
		defer closeIn()

		store, err := openStore(false)
		if err != nil {
			log.Fatalln(err)
		}
		defer store.Close()

		summary, err := runReplay(ctx, store, in)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalln(err)
		}

		if optReplayInflux {
			closed, err := store.Routes(func(r *route.Route) bool { return r.IsClosed })
			if err != nil {
				log.Fatalln(err)
			}
			if err := influxdb.ExportRoutes(ctx, params.DefaultInfluxConfig(), params.DefaultRouteConfig, closed); err != nil {
				slog.Error("InfluxDB export failed", "error", err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalln(err)
		}
	},
}

func openReplayInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	if strings.HasSuffix(args[0], ".gz") {
		gzr, err := flat.NewGZReader(args[0])
		if err != nil {
			return nil, nil, err
		}
		return gzr.Reader(), func() { _ = gzr.Close() }, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func newReplayPredictor(acc *provider.Accelerometer, leases *lease.Manager) (aggregator.Predictor, error) {
	if optReplayModelDir != "" {
		forest, err := classifier.LoadForest(optReplayModelDir)
		if err != nil {
			return nil, err
		}
		return aggregator.NewRunner(forest, acc, leases, nil), nil
	}
	templates, err := classifier.ParseTemplates(optReplayTemplates)
	if err != nil {
		return nil, err
	}
	return aggregator.NewTemplatePredictor(classifier.NewTemplate(time.Second, templates...), nil), nil
}

func runReplay(ctx context.Context, store *state.Store, in io.Reader) (*replay.Summary, error) {
	clock := provider.NewClock(time.Time{})
	locations := provider.NewLocation(provider.ParseAuthorization(optReplayAuthorization), optReplayDeferral)
	battery := provider.NewBattery(optReplayBattery)
	acc := provider.NewAccelerometer()
	leases := lease.NewManager()

	predictor, err := newReplayPredictor(acc, leases)
	if err != nil {
		return nil, err
	}
	defer predictor.Stop()

	gateway, err := newGateway(uploadConfig())
	if err != nil {
		return nil, err
	}
	rec := recorder.New(store, gateway, params.DefaultRouteConfig, uploadConfig())
	rec.SetClock(clock.Now)
	if optReplayPlaces {
		namer, err := placename.NewRgeo()
		if err != nil {
			return nil, err
		}
		rec.Places = namer
	}

	config := *params.DefaultRouteManagerConfig
	config.MinimumBatteryForTracking = optReplayBatteryFloor
	m := manager.New(rec, locations, battery, predictor, &config)
	m.SetClock(clock.Now)
	m.SetLeases(leases)

	if optReplayStatusd != "" {
		dConfig := params.DefaultStatusDaemonConfig()
		dConfig.Address = optReplayStatusd
		dConfig.Token = viper.GetString("statusd-token")
		d := statusd.NewStatusDaemon(dConfig, store, m, m.Feeds())
		go func() {
			if err := d.Run(ctx); err != nil {
				slog.Error("Status daemon failed", "error", err)
			}
		}()
	}

	r := replay.New(m, store, locations, battery, acc, clock)
	r.MeterInterval = optReplayMeter
	return r.Replay(ctx, in)
}

func init() {
	rootCmd.AddCommand(replayCmd)

	flags := replayCmd.Flags()
	flags.StringVar(&optReplayModelDir, "model", "", "Directory with the classifier config.json and model")
	flags.StringVar(&optReplayTemplates, "templates", "cycling:0.9", "Scripted classifications, used without --model")
	flags.StringVar(&optReplayAuthorization, "authorization", "always", "Initial location authorization")
	flags.Float64Var(&optReplayBattery, "battery", 1.0, "Initial battery level, 0..1; negative is unknown")
	flags.Float64Var(&optReplayBatteryFloor, "battery-floor", params.DefaultRouteManagerConfig.MinimumBatteryForTracking, "Battery level at or below which tracking pauses")
	flags.BoolVar(&optReplayDeferral, "deferral", false, "Simulate a provider that supports deferred updates")
	flags.BoolVar(&optReplayPlaces, "places", false, "Name route start and end places with reverse geocoding")
	flags.BoolVar(&optReplayInflux, "influx", false, "Export closed routes to InfluxDB (INFLUXDB_* env)")
	flags.StringVar(&optReplayStatusd, "statusd", "", "Serve the status daemon on this address while replaying")
	flags.DurationVar(&optReplayMeter, "meter", 0, "Log replay throughput at this interval")
}
