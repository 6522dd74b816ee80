package params

import "time"

// InfluxConfig addresses the InfluxDB bucket closed routes are exported to.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Precision is the timestamp precision of written points.
	Precision time.Duration
}

// DefaultInfluxConfig reads the INFLUXDB_* environment.
func DefaultInfluxConfig() *InfluxConfig {
	return &InfluxConfig{
		URL:       INFLUXDB_URL,
		Token:     INFLUXDB_TOKEN,
		Org:       INFLUXDB_ORG,
		Bucket:    INFLUXDB_BUCKET,
		Precision: time.Second,
	}
}

func (c *InfluxConfig) Enabled() bool {
	return c != nil && c.URL != "" && c.Bucket != ""
}
