package geocoding

import "errors"

var (
	// ErrNilRequest is returned when a geocoding call is made without a request.
	ErrNilRequest = errors.New("geocoding request is nil")
	// ErrZeroResults is returned when the provider answered successfully but found nothing.
	ErrZeroResults = errors.New("ZERO_RESULTS")
	// ErrMissingGeometry is returned when a result carries no usable location.
	ErrMissingGeometry = errors.New("geocoding result has no geometry location")
	// ErrMissingComponents is returned when a result carries no address component list at all.
	ErrMissingComponents = errors.New("geocoding result has no address components")
	// ErrMissingLocation is returned when a reverse lookup has neither coordinates nor a place ID.
	ErrMissingLocation = errors.New("reverse geocoding needs a LatLng or a PlaceID")
)
