// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"saferide/internal/types"
)

const (
	EarthRadiusKm = 6371.0
	// kmPerDegreeLat is the mean length of one degree of latitude on the sphere above.
	kmPerDegreeLat = EarthRadiusKm * math.Pi / 180.0
)

// DistanceKm returns the great-circle distance between a and b, rejecting
// out-of-range coordinates with types.ErrInput.
func DistanceKm(a, b types.Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return HaversineKm(a, b), nil
}

// HaversineKm is the unchecked form of DistanceKm for callers that already
// validated their input.
func HaversineKm(a, b types.Point) float64 {
	if a == b {
		return 0
	}
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// PathLengthKm sums the distances between consecutive waypoints.
func PathLengthKm(points []types.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}

// Interpolate returns the point at fraction t along the straight lat/lng line a->b.
func Interpolate(a, b types.Point, t float64) types.Point {
	return types.Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// Offset moves p by the given kilometres north and east, clamping to valid ranges.
func Offset(p types.Point, northKm, eastKm float64) types.Point {
	lat := p.Lat + northKm/kmPerDegreeLat
	cos := math.Cos(degreesToRadians(p.Lat))
	lng := p.Lng
	if cos > 1e-9 {
		lng += eastKm / (kmPerDegreeLat * cos)
	}
	return types.Point{Lat: clamp(lat, -90, 90), Lng: clamp(lng, -180, 180)}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
