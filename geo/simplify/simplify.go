// Package simplify reduces a location trace with Ramer-Douglas-Peucker,
// keeping the synthetic anchors a route's start and end depend on.
package simplify

import (
	"math"

	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PerpendicularDistance returns the distance, in degrees, from p to the
// infinite line through a and b. Longitude is x, latitude is y.
// When a and b coincide the line degenerates and the distance to a is returned.
func PerpendicularDistance(a, b, p orb.Point) float64 {
	base := planar.Distance(a, b)
	if base == 0 {
		return planar.Distance(a, p)
	}
	// Twice the area of triangle abp.
	area2 := math.Abs(a.X()*(b.Y()-p.Y()) + b.X()*(p.Y()-a.Y()) + p.X()*(a.Y()-b.Y()))
	return area2 / base
}

// Simplify marks the kept subset of locs as Simplified and returns it in order.
// Marks already present on locs are left alone; use Reset first to start over.
//
// The first and last locations are always kept. Wherever a segment is
// collapsed, any inferred location inside it is kept along with the
// location that follows it.
func Simplify(locs []*location.Location, epsilon float64) []*location.Location {
	if len(locs) == 0 {
		return nil
	}
	simplify(locs, epsilon)
	return Kept(locs)
}

func simplify(locs []*location.Location, epsilon float64) {
	start, end := locs[0], locs[len(locs)-1]
	if len(locs) <= 2 {
		start.Simplified = true
		end.Simplified = true
		return
	}

	maxDist, maxIndex := 0.0, 0
	for i := 1; i < len(locs)-1; i++ {
		d := PerpendicularDistance(start.Point(), end.Point(), locs[i].Point())
		if d > maxDist {
			maxDist, maxIndex = d, i
		}
	}

	if maxDist > epsilon {
		simplify(locs[:maxIndex+1], epsilon)
		simplify(locs[maxIndex:], epsilon)
		return
	}

	start.Simplified = true
	for i, l := range locs {
		if !l.Source.IsInferred() {
			continue
		}
		l.Simplified = true
		if i+1 < len(locs) {
			locs[i+1].Simplified = true
		}
	}
	end.Simplified = true
}

// Reset clears the Simplified mark on every location.
func Reset(locs []*location.Location) {
	for _, l := range locs {
		l.Simplified = false
	}
}

// Kept returns the Simplified locations, in order.
func Kept(locs []*location.Location) []*location.Location {
	out := make([]*location.Location, 0, len(locs))
	for _, l := range locs {
		if l.Simplified {
			out = append(out, l)
		}
	}
	return out
}
