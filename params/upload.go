package params

import (
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/common"
)

type UploadConfig struct {
	// ServerAddress is the trip API root, eg. https://api.ride.report/api/v2/.
	ServerAddress string
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds each request.
	Timeout time.Duration
	// PassInterval separates uploads within one upload pass.
	PassInterval time.Duration
	// CoordinatePrecision is the number of decimal places coordinates are sent with.
	CoordinatePrecision int32
}

var DefaultUploadConfig = &UploadConfig{
	ServerAddress:       "https://api.ride.report/api/v2/",
	Timeout:             30 * time.Second,
	PassInterval:        600 * time.Millisecond,
	CoordinatePrecision: common.GPSPrecision7,
}
