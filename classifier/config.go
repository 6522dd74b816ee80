package classifier

import (
	"fmt"
	"math/bits"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// Config describes how a model expects to be sampled.
type Config struct {
	SampleCount    int
	SamplingRateHz float64

	// ModelUID names the model file. It may be empty while training.
	ModelUID string
}

// ParseConfig reads a model configuration document, eg.
//
//	{"model_metadata_version": 1, "sampling": {"sample_count": 64, "sampling_rate_hz": 21}, "cv_sha256": "..."}
func ParseConfig(data []byte) (*Config, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid model configuration json")
	}
	root := gjson.ParseBytes(data)
	if v := root.Get("model_metadata_version").Int(); v > 1 {
		return nil, fmt.Errorf("unsupported model_metadata_version %d", v)
	}
	count := root.Get("sampling.sample_count")
	if count.Type != gjson.Number || count.Int() <= 0 {
		return nil, fmt.Errorf("unacceptable sample_count %q", count.Raw)
	}
	if bits.OnesCount64(uint64(count.Int())) != 1 {
		return nil, fmt.Errorf("sample_count must be a power of 2, got %d", count.Int())
	}
	rate := root.Get("sampling.sampling_rate_hz")
	if rate.Type != gjson.Number || rate.Float() <= 0 {
		return nil, fmt.Errorf("unsupported sampling_rate_hz %q", rate.Raw)
	}
	return &Config{
		SampleCount:    int(count.Int()),
		SamplingRateHz: rate.Float(),
		ModelUID:       root.Get("cv_sha256").String(),
	}, nil
}

func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// SampleInterval is the maximum spacing between readings.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.SamplingRateHz)
}

// SessionDuration is the time from the first to the last reading of a window.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(float64(c.SampleCount-1) * float64(time.Second) / c.SamplingRateHz)
}
