package models

// LatLng is a geographical point extracted from a geocoding result.
type LatLng struct {
	Lat float64 `json:"lat"` // Lat is the latitude in degrees.
	Lng float64 `json:"lng"` // Lng is the longitude in degrees.
}
