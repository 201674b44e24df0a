package geo

import (
	"math"
	"strconv"
)

const earthRadiusMeters = 6_371_000

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat, Lon float64
}

// Box is a latitude/longitude rectangle. All four edges are inclusive.
type Box struct {
	South, West, North, East float64
}

// Tricity spans Gdańsk, Sopot and Gdynia.
var Tricity = Box{South: 54.25, West: 18.30, North: 54.62, East: 18.95}

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	sinLat := math.Sin(radians(b.Lat-a.Lat) / 2)
	sinLon := math.Sin(radians(b.Lon-a.Lon) / 2)
	h := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Around returns the smallest box that holds every point within
// radiusMeters of center. Longitude spread grows with latitude.
func Around(center Point, radiusMeters float64) Box {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	dLon := dLat / math.Cos(radians(center.Lat))
	return Box{
		South: center.Lat - dLat,
		West:  center.Lon - dLon,
		North: center.Lat + dLat,
		East:  center.Lon + dLon,
	}
}

// Contains reports whether p lies inside b or on its edge.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North &&
		p.Lon >= b.West && p.Lon <= b.East
}

// Viewbox renders b as "west,north,east,south", the order Nominatim expects.
func (b Box) Viewbox() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.West) + "," + f(b.North) + "," + f(b.East) + "," + f(b.South)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
