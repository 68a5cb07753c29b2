package property

import (
	"fmt"
	"math"

	"github.com/umahmood/haversine"
)

// Unit is a distance unit for radius searches.
type Unit string

const (
	Miles      Unit = "mi"
	Kilometers Unit = "km"

	milesPerDegree = 69.0
	kmPerMile      = 1.609344
)

// ToMiles converts distance in unit to miles.
func (u Unit) ToMiles(distance float64) (float64, error) {
	switch u {
	case Miles, "":
		return distance, nil
	case Kilometers:
		return distance / kmPerMile, nil
	default:
		return 0, fmt.Errorf("%w: unsupported distance unit %q (use mi or km)", ErrInvalidArgument, u)
	}
}

// BoundingBox is a latitude/longitude rectangle. A box that crosses the antimeridian
// has MinLng > MaxLng and covers [MinLng, 180] and [-180, MaxLng].
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// LngRanges splits the longitude span into at most two ranges that do not wrap.
func (b BoundingBox) LngRanges() [][2]float64 {
	if b.MinLng <= b.MaxLng {
		return [][2]float64{{b.MinLng, b.MaxLng}}
	}
	return [][2]float64{{b.MinLng, 180}, {-180, b.MaxLng}}
}

// Contains reports whether c lies inside the box.
func (b BoundingBox) Contains(c Coordinates) bool {
	if c.Lat < b.MinLat || c.Lat > b.MaxLat {
		return false
	}
	for _, r := range b.LngRanges() {
		if c.Lng >= r[0] && c.Lng <= r[1] {
			return true
		}
	}
	return false
}

// BoundingBoxAround approximates a circle of radiusMiles with 1 degree ~ 69 miles.
// Near the poles the longitude range opens to the full circle.
func BoundingBoxAround(center Coordinates, radiusMiles float64) BoundingBox {
	latDelta := radiusMiles / milesPerDegree
	box := BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: -180,
		MaxLng: 180,
	}
	if cos := math.Cos(center.Lat * math.Pi / 180); cos > 1e-6 {
		lngDelta := radiusMiles / (milesPerDegree * cos)
		if lngDelta < 180 {
			box.MinLng = wrapLng(center.Lng - lngDelta)
			box.MaxLng = wrapLng(center.Lng + lngDelta)
		}
	}
	return box
}

// wrapLng maps a longitude into [-180, 180].
func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	}
	return lng
}

// DistanceMiles is the great-circle distance between two points.
func DistanceMiles(a, b Coordinates) float64 {
	mi, _ := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lng},
		haversine.Coord{Lat: b.Lat, Lon: b.Lng},
	)
	return mi
}

// validateRadius checks the center and converts the radius to miles.
func validateRadius(center Coordinates, distance float64, unit Unit) (float64, error) {
	if math.IsNaN(center.Lat) || center.Lat < -90 || center.Lat > 90 {
		return 0, fmt.Errorf("%w: latitude %v out of range", ErrInvalidArgument, center.Lat)
	}
	if math.IsNaN(center.Lng) || center.Lng < -180 || center.Lng > 180 {
		return 0, fmt.Errorf("%w: longitude %v out of range", ErrInvalidArgument, center.Lng)
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return 0, fmt.Errorf("%w: distance must be a non-negative number", ErrInvalidArgument)
	}
	return unit.ToMiles(distance)
}

// withinRadius keeps the properties whose coordinates lie within radiusMiles of center.
func withinRadius(props []*Property, center Coordinates, radiusMiles float64) []*Property {
	out := []*Property{}
	for _, p := range props {
		c := p.Location.Coordinates
		if c == nil {
			continue
		}
		if DistanceMiles(center, *c) <= radiusMiles {
			out = append(out, p)
		}
	}
	return out
}
