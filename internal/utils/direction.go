package utils

import (
	"math"
)

// CardinalPoints is the number of compass sectors used for cardinal labels.
type CardinalPoints int

const (
	FourPoints  CardinalPoints = 4
	EightPoints CardinalPoints = 8
)

var (
	fourPointLabels  = []string{"N", "E", "S", "W"}
	eightPointLabels = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
)

// DefaultCardinal is reported when no orientation sample has ever been seen.
const DefaultCardinal = "N"

// NormalizeAngle maps any angle in degrees into [0, 360).
func NormalizeAngle(angle float64) float64 {
	normalized := math.Mod(angle, 360)
	if normalized < 0 {
		normalized += 360
	}
	// -0 and values that round up to 360 both collapse to 0
	if normalized == 0 || normalized >= 360 {
		return 0
	}
	return normalized
}

// DisplayRotation returns the rotation applied to an on-screen heading marker.
// The marker turns opposite to the map, so the map's own bearing is subtracted
// from the device heading and the result negated.
func DisplayRotation(alpha, mapBearing float64) float64 {
	return NormalizeAngle(-(alpha - mapBearing + 360))
}

// Cardinal buckets an angle into one of four or eight compass labels.
// Unsupported sector counts fall back to eight.
func Cardinal(angle float64, points CardinalPoints) string {
	labels := eightPointLabels
	if points == FourPoints {
		labels = fourPointLabels
	}
	divisions := float64(len(labels))
	sector := 360 / divisions

	index := int(math.Floor((NormalizeAngle(angle)+sector/2)/sector)) % len(labels)
	return labels[index]
}

// BearingBetweenPoints calculates the bearing in degrees from point1 to point2
func BearingBetweenPoints(lat1, lon1, lat2, lon2 float64) float64 {
	// Convert to radians
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	theta := math.Atan2(y, x)
	return NormalizeAngle(theta * 180 / math.Pi)
}

// BearingToCompass converts a bearing (0-360°) to 8-point compass direction
func BearingToCompass(bearing float64) string {
	return Cardinal(bearing, EightPoints)
}

// CompassDirection calculates compass direction from lat1,lon1 to lat2,lon2
func CompassDirection(lat1, lon1, lat2, lon2 float64) string {
	bearing := BearingBetweenPoints(lat1, lon1, lat2, lon2)
	return BearingToCompass(bearing)
}
