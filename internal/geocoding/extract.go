package geocoding

import (
	"slices"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"googlemaps.github.io/maps"
)

const postalCodeType = string(maps.ComponentPostalCode)

// ExtractLatLng returns the location of a single geocoding result.
// A result without geometry (no location and no location type) yields ErrMissingGeometry.
func ExtractLatLng(result *maps.GeocodingResult) (models.LatLng, error) {
	if result == nil {
		return models.LatLng{}, ErrMissingGeometry
	}

	geometry := result.Geometry
	if geometry.Location == (maps.LatLng{}) && geometry.LocationType == "" {
		return models.LatLng{}, ErrMissingGeometry
	}

	return models.LatLng{Lat: geometry.Location.Lat, Lng: geometry.Location.Lng}, nil
}

// ExtractPostalCode returns the first address component tagged "postal_code".
// The long name is returned unless useShortName is set. found is false when no
// component carries the tag, including for an empty list.
// A result whose component list is absent altogether yields ErrMissingComponents.
func ExtractPostalCode(result *maps.GeocodingResult, useShortName bool) (string, bool, error) {
	if result == nil || result.AddressComponents == nil {
		return "", false, ErrMissingComponents
	}

	for _, component := range result.AddressComponents {
		if !slices.Contains(component.Types, postalCodeType) {
			continue
		}
		if useShortName {
			return component.ShortName, true, nil
		}
		return component.LongName, true, nil
	}

	return "", false, nil
}
