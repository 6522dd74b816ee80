package params

import (
	"os"
	"path/filepath"
	"time"
)

var DatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".riderecorder")
}()

const (
	StoreDBName = "routes.db"

	// ConfigFileName is looked up in $HOME by the CLI.
	ConfigFileName = ".riderecorder"

	// EnvPrefix prefixes environment overrides, eg. RIDERECORDER_DATADIR.
	EnvPrefix = "RIDERECORDER"
)

var (
	StoreRoutesBucket      = []byte("routes")
	StoreAggregatorsBucket = []byte("aggregators")
	StoreRecorderBucket    = []byte("recorder")

	// StoreRecorderStateKey holds the recorder's singleton state
	// (pause flags, carried-over arrival anchor).
	StoreRecorderStateKey = []byte("state")
)

// StoreRouteCacheSize is the number of routes kept decoded in memory by the store.
var StoreRouteCacheSize = 64

var (
	// CacheRecentEventsTTL is how long route events are kept around
	// for replay to newly connected status clients.
	CacheRecentEventsTTL = 1 * time.Hour

	// CacheFixDedupeSize is the number of location fixes remembered for dedupe.
	CacheFixDedupeSize = 10_000
)

var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

// AWS_BUCKETNAME is the S3 bucket full routes are archived to by the S3 gateway.
// The AWS library reads its credentials and region from the environment.
var AWS_BUCKETNAME = os.Getenv("AWS_BUCKETNAME")
