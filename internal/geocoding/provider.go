package geocoding

import (
	"context"

	"googlemaps.github.io/maps"
)

// Provider is the geocoding backend a Client delegates to.
// Every vendor is adapted to the Google Maps request and result shapes
// (see GoogleProvider and NominatimProvider).
type Provider interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}
