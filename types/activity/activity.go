package activity

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// Type is a mode of travel. Values match the numbers sent to the trip server.
type Type int

const (
	Unknown Type = iota
	Running
	Cycling
	Automotive
	Walking
	Bus
	Rail
	Stationary
	Aviation
	Maritime
	Motorcycle
	Tram
	Helicopter
	Skateboarding
	Skiing
	Wheelchair
	Snowboarding // be sure to update UserSelectable if changing this
	KickScooter
	Other Type = 999
)

// UserSelectable does not include Stationary or Unknown.
var UserSelectable = []Type{
	Running, Cycling, Automotive, Walking, Bus, Rail, Aviation, Maritime, Motorcycle,
	Tram, Helicopter, Skateboarding, Skiing, Snowboarding, Wheelchair, KickScooter, Other,
}

var (
	activityStationary = regexp.MustCompile(`(?i)stationary|still`)
	activityWalking    = regexp.MustCompile(`(?i)walk`)
	activityRunning    = regexp.MustCompile(`(?i)run`)
	activityMotorcycle = regexp.MustCompile(`(?i)^motor ?(cycl|bike)`)
	activityCycling    = regexp.MustCompile(`(?i)^(bi)?cycl|^bik(e|ing)`)
	activityDriving    = regexp.MustCompile(`(?i)drive|driving|automotive|car`)
	activityBus        = regexp.MustCompile(`(?i)^bus`)
	activityRail       = regexp.MustCompile(`(?i)rail|train`)
	activityFly        = regexp.MustCompile(`(?i)^fly|^air|aviation`)
)

// IsMotorized is true for modes whose classification within the group is unreliable.
func (a Type) IsMotorized() bool {
	return a == Automotive || a == Bus || a == Rail
}

func (a Type) IsPedestrian() bool {
	return a == Walking || a == Running
}

func (a Type) IsMicroMobility() bool {
	return a == KickScooter || a == Cycling
}

func (a Type) IsStationary() bool { return a == Stationary }

// IsKnown returns true if the activity is not Unknown.
func (a Type) IsKnown() bool { return a != Unknown }

// Valid reports whether a is one of the declared values.
func (a Type) Valid() bool {
	return (a >= Unknown && a <= KickScooter) || a == Other
}

// IsCompatible reports whether two modes may belong to the same journey.
// Motorized modes are compatible with each other, as are pedestrian modes.
// Stationary and Unknown are wildcards.
func IsCompatible(a, b Type) bool {
	if a == b {
		return true
	}
	if a.IsMotorized() && b.IsMotorized() {
		return true
	}
	if a.IsPedestrian() && b.IsPedestrian() {
		return true
	}
	if a.IsStationary() || b.IsStationary() {
		return true
	}
	return a == Unknown || b == Unknown
}

// Resumable reports whether a route of mode routeType may be resumed by a
// new prediction of mode predicted.
// Unlike IsCompatible it is asymmetric and does not pair pedestrian modes:
// an unknown route accepts anything, and unknown or stationary predictions fit any route.
func Resumable(routeType, predicted Type) bool {
	if routeType == predicted {
		return true
	}
	if routeType.IsMotorized() && predicted.IsMotorized() {
		return true
	}
	return predicted.IsStationary() || predicted == Unknown || routeType == Unknown
}

// String implements the Stringer interface.
func (a Type) String() string {
	switch a {
	case Unknown:
		return "Unknown"
	case Running:
		return "Running"
	case Cycling:
		return "Cycling"
	case Automotive:
		return "Automotive"
	case Walking:
		return "Walking"
	case Bus:
		return "Bus"
	case Rail:
		return "Rail"
	case Stationary:
		return "Stationary"
	case Aviation:
		return "Aviation"
	case Maritime:
		return "Maritime"
	case Motorcycle:
		return "Motorcycle"
	case Tram:
		return "Tram"
	case Helicopter:
		return "Helicopter"
	case Skateboarding:
		return "Skateboarding"
	case Skiing:
		return "Skiing"
	case Wheelchair:
		return "Wheelchair"
	case Snowboarding:
		return "Snowboarding"
	case KickScooter:
		return "KickScooter"
	case Other:
		return "Other"
	}
	return "Unknown"
}

// Emoji returns a single emoji representation of the activity.
func (a Type) Emoji() string {
	switch a {
	case Running:
		return "🏃"
	case Cycling:
		return "🚲"
	case Automotive:
		return "🚗"
	case Walking:
		return "🚶"
	case Bus:
		return "🚌"
	case Rail:
		return "🚈"
	case Stationary:
		return "💤"
	case Aviation:
		return "✈️"
	case Maritime:
		return "🛳"
	case Motorcycle:
		return "🏍"
	case Tram:
		return "🚡"
	case Helicopter:
		return "🚁"
	case Skateboarding:
		return "👟"
	case Skiing:
		return "⛷"
	case Snowboarding:
		return "🏂"
	case Wheelchair:
		return "♿️"
	case KickScooter:
		return "🛴"
	case Other:
		return "❓"
	}
	return "❗️"
}

// Noun names a trip of this mode.
func (a Type) Noun() string {
	switch a {
	case Running:
		return "Run"
	case Cycling:
		return "Bike Ride"
	case Automotive:
		return "Drive"
	case Walking:
		return "Walk"
	case Bus:
		return "Bus Ride"
	case Rail:
		return "Train Ride"
	case Stationary:
		return "Sitting"
	case Aviation:
		return "Flight"
	case Maritime:
		return "Boat Trip"
	case Motorcycle:
		return "Motorcycle Ride"
	case Tram:
		return "Tram Ride"
	case Helicopter:
		return "Helicopter Ride"
	case Skateboarding:
		return "Skateboard Ride"
	case Skiing:
		return "Ski Run"
	case Snowboarding:
		return "Snowboard Run"
	case Wheelchair:
		return "Wheelchair Trip"
	case KickScooter:
		return "Scooter Trip"
	case Other:
		return "Other Trip"
	}
	return "Unknown Trip"
}

// FromString parses loose activity names ("bike", "Cycling", "train").
// Names matching a Type's String, in any case, parse exactly.
func FromString(str string) Type {
	str = strings.TrimSpace(str)
	for _, t := range UserSelectable {
		if strings.EqualFold(t.String(), str) {
			return t
		}
	}
	switch {
	case activityStationary.MatchString(str):
		return Stationary
	case activityWalking.MatchString(str):
		return Walking
	case activityRunning.MatchString(str):
		return Running
	case activityMotorcycle.MatchString(str):
		return Motorcycle
	case activityCycling.MatchString(str):
		return Cycling
	case activityBus.MatchString(str):
		return Bus
	case activityRail.MatchString(str):
		return Rail
	case activityDriving.MatchString(str):
		return Automotive
	case activityFly.MatchString(str):
		return Aviation
	}
	return Unknown
}

// Mode implements basic reasoning about activity frequency or weighting.
type Mode struct {
	Activity Type
	Scalar   float64
}

// SortModes orders greater scalars first.
// In case of scalar ties, the "lesser" activity is preferred first.
func SortModes(a, b Mode) int {
	if a.Scalar > b.Scalar {
		return -1
	} else if a.Scalar < b.Scalar {
		return 1
	} else if int(a.Activity) < int(b.Activity) {
		return -1
	} else if int(a.Activity) > int(b.Activity) {
		return 1
	}
	return 0
}

type Modes []Mode

// ModeTracker tracks weighted activity verdicts over a sliding time window.
type ModeTracker struct {
	IntervalLimit time.Duration
	Acts          []ActRecord
	scalars       map[Type]float64
}

type ActRecord struct {
	A Type
	T time.Time
	W float64
}

// NewModeTracker creates a new ModeTracker with the given interval.
// The constructor must be used; a zero-value ModeTracker will not work.
func NewModeTracker(interval time.Duration) *ModeTracker {
	return &ModeTracker{
		IntervalLimit: interval,
		Acts:          []ActRecord{},
		scalars:       map[Type]float64{},
	}
}

// Push adds an activity record, dropping any records that fell out of the window.
func (mt *ModeTracker) Push(a Type, t time.Time, weight float64) {
	for len(mt.Acts) > 0 && t.Sub(mt.Acts[0].T) > mt.IntervalLimit {
		old := mt.Acts[0]
		mt.scalars[old.A] -= old.W
		if mt.scalars[old.A] <= 0 {
			delete(mt.scalars, old.A)
		}
		mt.Acts = mt.Acts[1:]
	}
	mt.Acts = append(mt.Acts, ActRecord{a, t, weight})
	mt.scalars[a] += weight
}

// Sorted returns the modes sorted by scalar value, with greatest scalars first.
func (mt *ModeTracker) Sorted(onlyKnown bool) Modes {
	modes := Modes{}
	for a, s := range mt.scalars {
		if onlyKnown && !a.IsKnown() {
			continue
		}
		modes = append(modes, Mode{Activity: a, Scalar: s})
	}
	slices.SortStableFunc(modes, SortModes)
	return modes
}

func (mt *ModeTracker) Reset() {
	mt.Acts = []ActRecord{}
	mt.scalars = map[Type]float64{}
}

func (mt *ModeTracker) Span() time.Duration {
	if len(mt.Acts) < 2 {
		return 0
	}
	return mt.Acts[len(mt.Acts)-1].T.Sub(mt.Acts[0].T)
}
