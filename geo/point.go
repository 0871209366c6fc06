// Package geo provides geographic points, great circle distances and a
// nearest neighbour index over documents.
package geo

import (
	"math"

	"github.com/poiesic/rankit/core"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6_371_008.8

// Point is a position in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Validate checks that the point lies within the coordinate ranges.
func (p Point) Validate() error {
	return core.ValidateCoordinates(p.Lat, p.Lng)
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(min(h, 1)))
}

// XYZ projects p on the unit sphere. Euclidean distances between projections
// grow with the great circle distance between points.
func (p Point) XYZ() [3]float64 {
	lat := radians(p.Lat)
	lng := radians(p.Lng)
	return [3]float64{
		math.Cos(lat) * math.Cos(lng),
		math.Cos(lat) * math.Sin(lng),
		math.Sin(lat),
	}
}

// OppositeOf returns the antipode of p.
func OppositeOf(p Point) Point {
	lng := p.Lng
	if lng >= 0 {
		lng -= 180
	} else {
		lng += 180
	}
	return Point{Lat: -p.Lat, Lng: lng}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
