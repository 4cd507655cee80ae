package geocoding

import (
	"context"
	"log/slog"

	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider wraps a Google Maps API client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode sends the request to the Google Maps Geocoding API unchanged.
// Any status other than OK comes back from the client library as an error.
func (gp *GoogleProvider) Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", r.Address, "place_id", r.PlaceID)

	return gp.client.Geocode(ctx, r)
}

// ReverseGeocode uses the same endpoint: a request carrying latlng (or a bare
// place_id) is answered with the addresses found at that location.
func (gp *GoogleProvider) ReverseGeocode(
	ctx context.Context,
	r *maps.GeocodingRequest,
) ([]maps.GeocodingResult, error) {
	if r.LatLng == nil && r.PlaceID == "" {
		return nil, ErrMissingLocation
	}

	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps", "latlng", r.LatLng, "place_id", r.PlaceID)

	return gp.client.Geocode(ctx, r)
}
