package common

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/shopspring/decimal"
)

/*
https://en.wikipedia.org/wiki/Decimal_degrees?useskin=vector

places 	degrees 	recognizable at this scale 	N/S or E/W at equator
4 	0.0001 		individual street, large buildings 	11.1 m
5 	0.00001 	individual trees, houses 		1.11 m
6 	0.000001 	individual humans 			111 mm
7 	0.0000001 	practical limit of commercial surveying 11.1 mm
*/

const (
	// GPSPrecision4 is the precision for individual street, large buildings
	GPSPrecision4 = 4
	// GPSPrecision5 is the precision for individual trees, houses
	GPSPrecision5 = 5
	// GPSPrecision6 is the precision for individual humans
	GPSPrecision6 = 6
	// GPSPrecision7 is the precision for practical limit of commercial surveying
	GPSPrecision7 = 7
)

// RoundDecimal rounds v to the given number of decimal places.
// Values are rounded as decimals, so 0.1+0.2 does not come out as 0.30000000000000004.
func RoundDecimal(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places)
}

// DistanceMeters returns the geodesic distance between two lon/lat points.
func DistanceMeters(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}
