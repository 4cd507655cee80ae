package geocoding

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"googlemaps.github.io/maps"
)

const (
	operationGeocode = "geocode"
	operationReverse = "reverse"

	statusOK          = "ok"
	statusZeroResults = "zero_results"
	statusError       = "error"
)

// Client geocodes addresses, place IDs and coordinates through an injected Provider.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	log          *slog.Logger     // Logger, also the sink for request advisories
	provider     Provider         // Geocoding backend
	providerName string           // Name of the provider for metrics labeling
	metrics      *metrics.Metrics // Metrics for tracking provider calls
}

type providerCall func(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)

// NewClient creates a Client that sends every request to provider.
func NewClient(log *slog.Logger, provider Provider, providerName string, metrics *metrics.Metrics) *Client {
	return &Client{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
	}
}

// Geocode resolves an address, a place ID or a set of component restrictions into
// the provider's result list. The request is passed to the provider as is and the
// result slice is returned as the provider built it.
//
// A request that only carries component restrictions is logged as a warning but
// still sent: the provider may resolve it from the restrictions alone.
func (c *Client) Geocode(ctx context.Context, req *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if req.Address == "" && req.PlaceID == "" && req.Components != nil {
		c.log.WarnContext(ctx,
			"Geocoding request has component restrictions but no address or place ID; "+
				"restrictions alone may not be enough to find a result",
			"components", req.Components)
		c.metrics.RestrictionsWarnings.Inc()
	}

	return c.call(ctx, operationGeocode, req, c.provider.Geocode)
}

// ReverseGeocode resolves req.LatLng (or req.PlaceID) into the provider's result list.
func (c *Client) ReverseGeocode(ctx context.Context, req *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	return c.call(ctx, operationReverse, req, c.provider.ReverseGeocode)
}

// call performs exactly one provider round trip and turns its outcome into
// results or an error. Provider errors are returned untouched.
func (c *Client) call(
	ctx context.Context,
	operation string,
	req *maps.GeocodingRequest,
	fn providerCall,
) ([]maps.GeocodingResult, error) {
	c.log.DebugContext(ctx, "Sending geocoding request", "provider", c.providerName, "operation", operation)

	startTime := time.Now()
	results, err := fn(ctx, req)
	duration := time.Since(startTime).Seconds()
	c.metrics.RequestSeconds.WithLabelValues(c.providerName, operation).Observe(duration)

	if err != nil {
		c.metrics.Requests.WithLabelValues(operation, statusError).Inc()
		c.log.ErrorContext(ctx, "Geocoding provider returned an error",
			"provider", c.providerName, "operation", operation, "error", err)
		return nil, err
	}

	if len(results) == 0 {
		c.metrics.Requests.WithLabelValues(operation, statusZeroResults).Inc()
		c.log.DebugContext(ctx, "Geocoding provider found nothing", "provider", c.providerName, "operation", operation)
		return nil, ErrZeroResults
	}

	c.metrics.Requests.WithLabelValues(operation, statusOK).Inc()
	c.log.DebugContext(ctx, "Geocoding request succeeded",
		"provider", c.providerName, "operation", operation, "results", len(results))

	return results, nil
}
