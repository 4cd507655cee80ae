package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

// NominatimBaseURL is the public OpenStreetMap Nominatim endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org"

const (
	nominatimPublicRate = 1
	nominatimUserAgent  = "Cartograph/1.0 (https://github.com/UnknownOlympus/cartograph)"
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// Requests and results are translated to and from the Google Maps shapes so callers
// can switch vendors without touching their extraction code.
type NominatimProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Nominatim API, without the endpoint path
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimPlace is one place from the /search and /reverse endpoints (format=json).
type nominatimPlace struct {
	PlaceID     int64             `json:"place_id"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	BoundingBox []string          `json:"boundingbox"` // [min lat, max lat, min lon, max lon]
	Error       string            `json:"error"`       // set by /reverse when nothing is found
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyQuery    = errors.New("nominatim request has no address or component restrictions")
	ErrNominatimPlaceID       = errors.New("nominatim does not resolve Google place IDs")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// nominatimComponents maps Nominatim address detail keys to Google address
// component types, ordered from the most to the least specific.
var nominatimComponents = []struct {
	key   string
	types []string
}{
	{"house_number", []string{"street_number"}},
	{"road", []string{"route"}},
	{"suburb", []string{"sublocality", "political"}},
	{"city", []string{"locality", "political"}},
	{"town", []string{"locality", "political"}},
	{"village", []string{"locality", "political"}},
	{"county", []string{"administrative_area_level_2", "political"}},
	{"state", []string{"administrative_area_level_1", "political"}},
	{"postcode", []string{"postal_code"}},
	{"country", []string{"country", "political"}},
}

// structuredParams maps component restrictions to Nominatim structured search parameters.
var structuredParams = map[maps.Component]string{
	maps.ComponentRoute:              "street",
	maps.ComponentLocality:           "city",
	maps.ComponentAdministrativeArea: "state",
	maps.ComponentPostalCode:         "postalcode",
	maps.ComponentCountry:            "country",
}

// NewNominatimProvider creates a new Nominatim geocoding provider.
// A non-positive rateLimit disables rate limiting.
func NewNominatimProvider(baseURL string, rateLimit int, log *slog.Logger) *NominatimProvider {
	const timeout = 10

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}

	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout * time.Second}, baseURL, limiter, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(
	client HTTPClient,
	baseURL string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimProvider {
	return &NominatimProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		limiter: limiter,
	}
}

// Geocode searches Nominatim for r.Address. Component restrictions narrow the
// search by country; without an address they become a structured search.
// An empty answer yields no results and no error.
func (np *NominatimProvider) Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	if r.PlaceID != "" && r.Address == "" {
		return nil, ErrNominatimPlaceID
	}

	query := url.Values{}
	switch {
	case r.Address != "":
		query.Set("q", r.Address)
		if country := r.Components[maps.ComponentCountry]; country != "" {
			query.Set("countrycodes", strings.ToLower(country))
		}
	case len(r.Components) > 0:
		for component, value := range r.Components {
			if param, ok := structuredParams[component]; ok {
				query.Set(param, value)
			}
		}
	}
	if len(query) == 0 {
		return nil, ErrNominatimEmptyQuery
	}

	if r.Bounds != nil {
		query.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f",
			r.Bounds.SouthWest.Lng, r.Bounds.SouthWest.Lat, r.Bounds.NorthEast.Lng, r.Bounds.NorthEast.Lat))
	}

	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", r.Address, "components", r.Components)

	body, err := np.fetch(ctx, "/search", query, r.Language)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err = json.Unmarshal(body, &places); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	results := make([]maps.GeocodingResult, 0, len(places))
	for _, place := range places {
		result, errConv := place.toResult()
		if errConv != nil {
			return nil, errConv
		}
		results = append(results, result)
	}

	return results, nil
}

// ReverseGeocode looks up the address at r.LatLng.
func (np *NominatimProvider) ReverseGeocode(
	ctx context.Context,
	r *maps.GeocodingRequest,
) ([]maps.GeocodingResult, error) {
	if r.LatLng == nil {
		if r.PlaceID != "" {
			return nil, ErrNominatimPlaceID
		}
		return nil, ErrMissingLocation
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(r.LatLng.Lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(r.LatLng.Lng, 'f', -1, 64))

	np.log.DebugContext(ctx, "Reverse geocoding using Nominatim", "lat", r.LatLng.Lat, "lon", r.LatLng.Lng)

	body, err := np.fetch(ctx, "/reverse", query, r.Language)
	if err != nil {
		return nil, err
	}

	var place nominatimPlace
	if err = json.Unmarshal(body, &place); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if place.Error != "" {
		np.log.DebugContext(ctx, "Nominatim found nothing at location", "reason", place.Error)
		return nil, nil
	}

	result, err := place.toResult()
	if err != nil {
		return nil, err
	}

	return []maps.GeocodingResult{result}, nil
}

// fetch performs one rate-limited GET against endpoint and returns the body of a 200 answer.
func (np *NominatimProvider) fetch(ctx context.Context, endpoint string, query url.Values, language string) ([]byte, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	query.Set("format", "json")
	query.Set("addressdetails", "1")
	if language != "" {
		query.Set("accept-language", language)
	}

	reqURL := np.baseURL + endpoint + "?" + query.Encode()
	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// User-Agent MUST identify the application per Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

func (p nominatimPlace) toResult() (maps.GeocodingResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return maps.GeocodingResult{}, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, p.Lat)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return maps.GeocodingResult{}, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, p.Lon)
	}

	locationType := "APPROXIMATE"
	if p.Address["house_number"] != "" {
		locationType = "ROOFTOP"
	}

	result := maps.GeocodingResult{
		AddressComponents: p.addressComponents(),
		FormattedAddress:  p.DisplayName,
		Geometry: maps.AddressGeometry{
			Location:     maps.LatLng{Lat: lat, Lng: lng},
			LocationType: locationType,
		},
		PlaceID: strconv.FormatInt(p.PlaceID, 10),
	}
	if p.Type != "" {
		result.Types = []string{p.Type}
	}
	if bounds, ok := parseBoundingBox(p.BoundingBox); ok {
		result.Geometry.Bounds = bounds
		result.Geometry.Viewport = bounds
	}

	return result, nil
}

// addressComponents never returns nil so that a place without address details
// reads as "no postal code" rather than "no components".
func (p nominatimPlace) addressComponents() []maps.AddressComponent {
	components := []maps.AddressComponent{}
	seen := make(map[string]bool)

	for _, mapping := range nominatimComponents {
		name := p.Address[mapping.key]
		if name == "" || seen[mapping.types[0]] {
			continue
		}
		seen[mapping.types[0]] = true

		shortName := name
		if mapping.key == "country" && p.Address["country_code"] != "" {
			shortName = strings.ToUpper(p.Address["country_code"])
		}

		components = append(components, maps.AddressComponent{
			LongName:  name,
			ShortName: shortName,
			Types:     mapping.types,
		})
	}

	return components
}

func parseBoundingBox(box []string) (maps.LatLngBounds, bool) {
	const boxLength = 4
	if len(box) != boxLength {
		return maps.LatLngBounds{}, false
	}

	values := make([]float64, boxLength)
	for i, raw := range box {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return maps.LatLngBounds{}, false
		}
		values[i] = v
	}

	return maps.LatLngBounds{
		SouthWest: maps.LatLng{Lat: values[0], Lng: values[2]},
		NorthEast: maps.LatLng{Lat: values[1], Lng: values[3]},
	}, true
}
