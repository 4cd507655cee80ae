package geocoding_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestClient(t *testing.T) (*geocoding.Client, *mocks.Provider, *metrics.Metrics, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	mockProvider := mocks.NewProvider(t)
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())

	return geocoding.NewClient(logger, mockProvider, "google", appMetrics), mockProvider, appMetrics, &logs
}

func samePointer(req *maps.GeocodingRequest) any {
	return mock.MatchedBy(func(r *maps.GeocodingRequest) bool { return r == req })
}

func countWarnings(logs *bytes.Buffer) int {
	return strings.Count(logs.String(), `"level":"WARN"`)
}

func TestClient_Geocode(t *testing.T) {
	ctx := t.Context()
	taipei := []maps.GeocodingResult{{PlaceID: "0109", FormattedAddress: "Taipei, Taiwan"}}

	t.Run("request is passed to the provider unchanged", func(t *testing.T) {
		client, mockProvider, _, _ := newTestClient(t)
		req := &maps.GeocodingRequest{Address: "Taipei", PlaceID: "0109"}

		mockProvider.On("Geocode", ctx, samePointer(req)).Return(taipei, nil).Once()

		_, err := client.Geocode(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, &maps.GeocodingRequest{Address: "Taipei", PlaceID: "0109"}, req, "request must not be modified")
	})

	t.Run("success returns the provider results as is", func(t *testing.T) {
		client, mockProvider, appMetrics, logs := newTestClient(t)
		req := &maps.GeocodingRequest{Address: "Taipei"}

		mockProvider.On("Geocode", ctx, req).Return(taipei, nil).Once()

		results, err := client.Geocode(ctx, req)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Same(t, &taipei[0], &results[0])
		assert.Zero(t, countWarnings(logs))
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.Requests.WithLabelValues("geocode", "ok")), 0)
	})

	t.Run("provider error is returned verbatim", func(t *testing.T) {
		client, mockProvider, appMetrics, _ := newTestClient(t)
		req := &maps.GeocodingRequest{Address: "Taipei"}
		providerErr := errors.New("maps: REQUEST_DENIED - ")

		mockProvider.On("Geocode", ctx, req).Return(nil, providerErr).Once()

		results, err := client.Geocode(ctx, req)

		require.Nil(t, results)
		require.ErrorIs(t, err, providerErr)
		assert.Same(t, providerErr, err)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.Requests.WithLabelValues("geocode", "error")), 0)
	})

	t.Run("restricted to a country and failing", func(t *testing.T) {
		client, mockProvider, _, logs := newTestClient(t)
		req := &maps.GeocodingRequest{
			Address:    "Belgrade",
			Components: map[maps.Component]string{maps.ComponentCountry: "TW"},
		}

		mockProvider.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := client.Geocode(ctx, req)

		require.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, countWarnings(logs), "an address is present, no advisory expected")
	})

	t.Run("restricted to a country and passing", func(t *testing.T) {
		client, mockProvider, _, logs := newTestClient(t)
		req := &maps.GeocodingRequest{
			Address:    "Taipei",
			Components: map[maps.Component]string{maps.ComponentCountry: "TW"},
		}

		mockProvider.On("Geocode", ctx, req).Return(taipei, nil).Once()

		results, err := client.Geocode(ctx, req)

		require.NoError(t, err)
		assert.Same(t, &taipei[0], &results[0])
		assert.Zero(t, countWarnings(logs))
	})

	t.Run("restrictions only warns once and proceeds", func(t *testing.T) {
		client, mockProvider, appMetrics, logs := newTestClient(t)
		req := &maps.GeocodingRequest{
			Components: map[maps.Component]string{maps.ComponentCountry: "TW", maps.ComponentPostalCode: "100"},
		}

		mockProvider.On("Geocode", ctx, req).Return(taipei, nil).Once()

		results, err := client.Geocode(ctx, req)

		require.NoError(t, err)
		assert.Same(t, &taipei[0], &results[0])
		assert.Equal(t, 1, countWarnings(logs))
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.RestrictionsWarnings), 0)
	})

	t.Run("restrictions only warns once when the provider fails", func(t *testing.T) {
		client, mockProvider, _, logs := newTestClient(t)
		req := &maps.GeocodingRequest{Components: map[maps.Component]string{maps.ComponentCountry: "TW"}}

		mockProvider.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := client.Geocode(ctx, req)

		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, countWarnings(logs))
	})

	t.Run("place ID with restrictions does not warn", func(t *testing.T) {
		client, mockProvider, _, logs := newTestClient(t)
		req := &maps.GeocodingRequest{
			PlaceID:    "0109",
			Components: map[maps.Component]string{maps.ComponentCountry: "TW"},
		}

		mockProvider.On("Geocode", ctx, req).Return(taipei, nil).Once()

		_, err := client.Geocode(ctx, req)

		require.NoError(t, err)
		assert.Zero(t, countWarnings(logs))
	})

	t.Run("empty answer is zero results", func(t *testing.T) {
		client, mockProvider, appMetrics, _ := newTestClient(t)
		req := &maps.GeocodingRequest{Address: "nowhere"}

		mockProvider.On("Geocode", ctx, req).Return([]maps.GeocodingResult{}, nil).Once()

		results, err := client.Geocode(ctx, req)

		require.Nil(t, results)
		require.ErrorIs(t, err, geocoding.ErrZeroResults)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.Requests.WithLabelValues("geocode", "zero_results")), 0)
	})

	t.Run("nil request", func(t *testing.T) {
		client, _, _, _ := newTestClient(t)

		results, err := client.Geocode(ctx, nil)

		require.Nil(t, results)
		require.ErrorIs(t, err, geocoding.ErrNilRequest)
	})

	t.Run("concurrent calls are independent", func(t *testing.T) {
		client, mockProvider, appMetrics, _ := newTestClient(t)
		const callers = 8

		mockProvider.On("Geocode", ctx, mock.Anything).Return(taipei, nil).Times(callers)

		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.Geocode(ctx, &maps.GeocodingRequest{Address: "Taipei"})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.InDelta(t, callers, testutil.ToFloat64(appMetrics.Requests.WithLabelValues("geocode", "ok")), 0)
	})
}

func TestClient_ReverseGeocode(t *testing.T) {
	ctx := t.Context()
	kyiv := []maps.GeocodingResult{{FormattedAddress: "Khreshchatyk St, Kyiv, Ukraine"}}

	t.Run("success", func(t *testing.T) {
		client, mockProvider, appMetrics, logs := newTestClient(t)
		req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: 50.45, Lng: 30.52}}

		mockProvider.On("ReverseGeocode", ctx, samePointer(req)).Return(kyiv, nil).Once()

		results, err := client.ReverseGeocode(ctx, req)

		require.NoError(t, err)
		assert.Same(t, &kyiv[0], &results[0])
		assert.Zero(t, countWarnings(logs))
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.Requests.WithLabelValues("reverse", "ok")), 0)
	})

	t.Run("provider error", func(t *testing.T) {
		client, mockProvider, _, _ := newTestClient(t)
		req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: 0, Lng: 0}}

		mockProvider.On("ReverseGeocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := client.ReverseGeocode(ctx, req)

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("nil request", func(t *testing.T) {
		client, _, _, _ := newTestClient(t)

		_, err := client.ReverseGeocode(ctx, nil)

		require.ErrorIs(t, err, geocoding.ErrNilRequest)
	})
}
