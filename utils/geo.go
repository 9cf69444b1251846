package utils

import (
	"fmt"
	"math"
)

const (
	EarthRadiusKM     = 6371.0
	MilesPerKilometer = 0.621371
	FeetPerMile       = 5280.0
)

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineMeters is HaversineKM in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKM(lat1, lon1, lat2, lon2) * 1000
}

// FormatCoordinates renders a position as "lat, lon" with four decimals. It is the
// address text used when reverse geocoding has nothing better.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// PresentableDistance describes how far a vehicle is from a stop.
func PresentableDistance(stopsAway int, distKM float64) string {
	distMi := distKM * MilesPerKilometer
	if stopsAway > 3 || distMi > 0.5 {
		return fmt.Sprintf("%.1f mile%s", distMi, ternary(distMi == 1, "", "s"))
	}
	if stopsAway == 0 {
		distFt := distMi * FeetPerMile
		if distFt < 100 {
			return "at stop"
		}
		if distFt < 500 {
			return "approaching"
		}
	}
	if stopsAway == 1 {
		return "1 stop"
	}
	return fmt.Sprintf("%d stops", stopsAway)
}

func ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
