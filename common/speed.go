package common

// KPH converts meters per second to kilometers per hour.
func KPH(metersPerSecond float64) float64 {
	return metersPerSecond * 3.6
}
