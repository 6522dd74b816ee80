package params

type RouteConfig struct {
	// SimplificationEpsilon is the Ramer-Douglas-Peucker tolerance, in degrees.
	SimplificationEpsilon float64

	// AcceptableLocationAccuracy is the worst horizontal accuracy (meters)
	// an active GPS fix may have to count toward length and speed.
	AcceptableLocationAccuracy float64

	// MinimumMovingSpeed separates moving fixes from idle ones, m/s.
	MinimumMovingSpeed float64

	// MinimumBikingSpeed is the floor for the approximate biking speed average, m/s.
	MinimumBikingSpeed float64

	// MinimumLocationsToClose: routes with this many locations or fewer are canceled on close.
	MinimumLocationsToClose int

	// MinimumMotorizedLocationsToClose: motorized routes with this many locations or fewer are canceled on close.
	MinimumMotorizedLocationsToClose int

	// MinimumMotorizedLength: motorized routes shorter than this (meters) are canceled on close.
	MinimumMotorizedLength float64

	// InProgressUpdateEvery throttles in-progress length updates to every N new locations.
	InProgressUpdateEvery int

	// SweepMaximumLocationsToCancel: open routes found at startup with this many
	// locations or fewer are canceled, others closed.
	SweepMaximumLocationsToCancel int
}

var DefaultRouteConfig = &RouteConfig{
	SimplificationEpsilon:            0.00005,
	AcceptableLocationAccuracy:       30, // kCLLocationAccuracyNearestTenMeters * 3
	MinimumMovingSpeed:               0.2,
	MinimumBikingSpeed:               1.0,
	MinimumLocationsToClose:          1,
	MinimumMotorizedLocationsToClose: 2,
	MinimumMotorizedLength:           250.0,
	InProgressUpdateEvery:            10,
	SweepMaximumLocationsToCancel:    3,
}
