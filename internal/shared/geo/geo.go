package geo

import (
	"fmt"
	"math"
	"time"
)

const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
// Both the speed guard and route drift detection use this exact formula,
// so thresholds compare against the same numbers.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Bearing returns the initial bearing from the first point to the second,
// in degrees normalized to [0, 360).
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dLng := toRad(lng2 - lng1)

	y := math.Sin(dLng) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Lerp interpolates between a and b. t is not clamped; callers own the range.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpCoord interpolates a coordinate pair. t is not clamped.
func LerpCoord(lat1, lng1, lat2, lng2, t float64) (float64, float64) {
	return Lerp(lat1, lat2, t), Lerp(lng1, lng2, t)
}

// FormatDistance renders meters for display: whole meters under a kilometer,
// otherwise kilometers to one decimal.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "< 1 min"
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rem)
}
