// Package geo holds the walking-route math: great-circle distance, walking
// duration, straight-line path interpolation, turn-by-turn instruction text
// and deviation detection. Everything here is pure and deterministic.
package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by Distance.
	EarthRadiusMeters = 6371000.0

	// DefaultWalkingSpeedKmh is used when a caller has no speed of its own.
	DefaultWalkingSpeedKmh = 5.0

	// PathSteps is the number of equal segments between start and end.
	PathSteps = 3

	arrivalTimeLayout = "15:04"
)

// ErrInvalidSpeed is returned for zero, negative or non-finite walking speeds.
var ErrInvalidSpeed = errors.New("walking speed must be a positive number")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the Haversine great-circle distance in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceBetween is Distance for two points.
func DistanceBetween(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EstimatedDuration converts a distance in meters into whole walking seconds.
func EstimatedDuration(distanceMeters, speedKmh float64) (int, error) {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		return 0, ErrInvalidSpeed
	}
	metersPerSecond := speedKmh * 1000 / 3600
	return int(math.Round(distanceMeters / metersPerSecond)), nil
}

// ArrivalTime formats the wall-clock time reached after walking for seconds from now.
func ArrivalTime(now time.Time, seconds int) string {
	return now.Add(time.Duration(seconds) * time.Second).Format(arrivalTimeLayout)
}

// Path interpolates PathSteps+1 points from start to end inclusive.
// It is a straight line and knows nothing about walls or stairs.
func Path(start, end Point) []Point {
	points := make([]Point, 0, PathSteps+1)
	for i := 0; i <= PathSteps; i++ {
		ratio := float64(i) / PathSteps
		points = append(points, Point{
			Lat: start.Lat + (end.Lat-start.Lat)*ratio,
			Lng: start.Lng + (end.Lng-start.Lng)*ratio,
		})
	}
	// pin the endpoints so float rounding never moves them
	points[0] = start
	points[PathSteps] = end
	return points
}

// Instructions renders the walking directions for a route of the given length.
func Instructions(distanceMeters float64) []string {
	rounded := int(math.Round(distanceMeters))

	instructions := []string{"Start from your current location"}
	if distanceMeters > 100 {
		instructions = append(instructions,
			"Head towards the main corridor",
			fmt.Sprintf("Continue straight for about %d meters", rounded),
		)
	} else {
		instructions = append(instructions,
			fmt.Sprintf("Walk %d meters to your destination", rounded),
		)
	}
	return append(instructions, "You have arrived at your destination")
}

// IsDeviated reports whether current is farther than thresholdMeters from
// every point of path. An empty path never counts as a deviation.
func IsDeviated(current Point, path []Point, thresholdMeters float64) bool {
	if len(path) == 0 {
		return false
	}
	return MinDistance(current, path) > thresholdMeters
}

// MinDistance returns the distance from p to the nearest point of path,
// or +Inf for an empty path.
func MinDistance(p Point, path []Point) float64 {
	minDistance := math.Inf(1)
	for _, q := range path {
		if d := DistanceBetween(p, q); d < minDistance {
			minDistance = d
		}
	}
	return minDistance
}
