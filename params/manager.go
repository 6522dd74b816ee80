package params

import "time"

// PowerMode is a location provider accuracy/filter pair.
// Zero DistanceFilter means no filter; zero DesiredAccuracy means best available.
type PowerMode struct {
	DesiredAccuracy float64
	DistanceFilter  float64
}

type RouteManagerConfig struct {
	// BackgroundPowerMode is used while monitoring for the start of a trip.
	BackgroundPowerMode PowerMode
	// ActiveGPSPowerMode is used while a cycling route is open.
	ActiveGPSPowerMode PowerMode

	// MinimumSpeedToContinueMonitoring, m/s (~5mph).
	MinimumSpeedToContinueMonitoring float64
	// MaximumPlausibleManualSpeed: computed speeds at or above this are GPS jumps, m/s.
	MaximumPlausibleManualSpeed float64
	// MinimumSpeedForPostRouteWalkingAround, m/s.
	MinimumSpeedForPostRouteWalkingAround float64
	// MinimumNonMovingContiguousGPSLocations before a stop is considered.
	MinimumNonMovingContiguousGPSLocations int
	// MinimumIntervalBeforeDeclaringWalkingSession after the bike stops.
	MinimumIntervalBeforeDeclaringWalkingSession time.Duration
	// IntervalForConsideringStoppedRoute without a sufficiently fast fix.
	IntervalForConsideringStoppedRoute time.Duration
	// IntervalBeforeStoppedRouteDueToUnusableSpeeds when no fix reports a speed.
	IntervalBeforeStoppedRouteDueToUnusableSpeeds time.Duration
	// IntervalForStoppingRouteWithoutSubsequentWalking when slow but not walking.
	IntervalForStoppingRouteWithoutSubsequentWalking time.Duration
	// IntervalForLocationTrackingDeferral is both the deferral timeout and
	// the grace added to the unusable-speed interval while deferring.
	IntervalForLocationTrackingDeferral time.Duration
	// MinimumLocationsToStopForUnusableSpeeds: younger routes are left running.
	MinimumLocationsToStopForUnusableSpeeds int
	// MaximumLocationsToCancelOnStop: stopped routes this small are canceled.
	MaximumLocationsToCancelOnStop int
	// WalkingReclassificationSpeed: stopped routes moving slower on average become walks.
	WalkingReclassificationSpeed float64
	// GPSShutdownGrace ignores stragglers delivered after GPS is turned off.
	GPSShutdownGrace time.Duration

	// Resumption timeouts, by the prior route's mode.
	ResumeLongCyclingDistance float64
	ResumeLongCyclingTimeout  time.Duration
	ResumeCyclingTimeout      time.Duration
	ResumeWalkingTimeout      time.Duration
	ResumeOtherTimeout        time.Duration

	// MinimumBatteryForTracking is the battery level floor (0..1).
	MinimumBatteryForTracking float64

	// PauseReminderDelay is when an indefinitely paused user is reminded.
	PauseReminderDelay time.Duration

	// LocationLeaseTTL bounds background leases held for location work.
	LocationLeaseTTL time.Duration

	// EventQueueSize is the buffer of the state machine's event channel.
	EventQueueSize int

	// ModeWindow is how far back recent verdicts count toward the dominant mode.
	ModeWindow time.Duration
	// RecentVerdicts is how many verdicts the status keeps.
	RecentVerdicts int
}

var DefaultRouteManagerConfig = &RouteManagerConfig{
	BackgroundPowerMode: PowerMode{DesiredAccuracy: 100, DistanceFilter: 300},
	ActiveGPSPowerMode:  PowerMode{DesiredAccuracy: 0, DistanceFilter: 0},

	MinimumSpeedToContinueMonitoring:                 2,
	MaximumPlausibleManualSpeed:                      20,
	MinimumSpeedForPostRouteWalkingAround:            0.2,
	MinimumNonMovingContiguousGPSLocations:           3,
	MinimumIntervalBeforeDeclaringWalkingSession:     10 * time.Second,
	IntervalForConsideringStoppedRoute:               60 * time.Second,
	IntervalBeforeStoppedRouteDueToUnusableSpeeds:    90 * time.Second,
	IntervalForStoppingRouteWithoutSubsequentWalking: 200 * time.Second,
	IntervalForLocationTrackingDeferral:              120 * time.Second,
	MinimumLocationsToStopForUnusableSpeeds:          10,
	MaximumLocationsToCancelOnStop:                   6,
	WalkingReclassificationSpeed:                     2,
	GPSShutdownGrace:                                 2 * time.Second,

	ResumeLongCyclingDistance: 20 * 1000,
	ResumeLongCyclingTimeout:  1080 * time.Second,
	ResumeCyclingTimeout:      300 * time.Second,
	ResumeWalkingTimeout:      900 * time.Second,
	ResumeOtherTimeout:        600 * time.Second,

	MinimumBatteryForTracking: 0.0,
	PauseReminderDelay:        24 * time.Hour,
	LocationLeaseTTL:          3 * time.Minute,
	EventQueueSize:            256,
	ModeWindow:                30 * time.Minute,
	RecentVerdicts:            16,
}
