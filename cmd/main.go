package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"googlemaps.github.io/maps"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

var errInvalidComponent = errors.New("component restriction must look like key=value")

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	reg    *prometheus.Registry
	client *geocoding.Client
}

func main() {
	// Ctrl+C cancels the in-flight provider request.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "cartograph",
		Short:        "Geocode addresses, place IDs and coordinates",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.client != nil {
				return nil
			}
			return a.setup(cmd.Context())
		},
	}

	root.AddCommand(newGeocodeCmd(a), newReverseCmd(a))

	return root
}

// setup loads configuration and builds the logger, the metrics registry and the client.
func (a *app) setup(ctx context.Context) error {
	a.cfg = config.MustLoad()
	a.log = setupLogger(a.cfg.Env)
	a.reg = prometheus.NewRegistry()

	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(a.cfg.Provider.Type),
		APIKey:    a.cfg.Provider.APIKey,
		RateLimit: a.cfg.Provider.RateLimit,
		BaseURL:   a.cfg.Provider.BaseURL,
		Logger:    a.log,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	a.log.DebugContext(ctx, "Geocoding provider initialized", "type", a.cfg.Provider.Type)
	a.client = geocoding.NewClient(a.log, provider, a.cfg.Provider.Type, metrics.NewMetrics(a.reg))

	return nil
}

// withMetricsFlush flushes metrics once run returns, whether it failed or not.
func (a *app) withMetricsFlush(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		return errors.Join(err, a.flushMetrics(cmd.Context()))
	}
}

func (a *app) flushMetrics(ctx context.Context) error {
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return nil
	}

	if err := metrics.WriteTextfile(a.cfg.MetricsFile, a.reg); err != nil {
		return err
	}
	a.log.DebugContext(ctx, "Metrics flushed", "file", a.cfg.MetricsFile)

	return nil
}

// applyDefaults fills language and region from configuration when the flags left them empty.
func (a *app) applyDefaults(req *maps.GeocodingRequest) {
	if a.cfg == nil {
		return
	}
	if req.Language == "" {
		req.Language = a.cfg.Request.Language
	}
	if req.Region == "" {
		req.Region = a.cfg.Request.Region
	}
}

func newGeocodeCmd(a *app) *cobra.Command {
	var (
		req        maps.GeocodingRequest
		components []string
		shortName  bool
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Resolve an address, a place ID or component restrictions",
		Example: `  cartograph geocode --address "1600 Amphitheatre Parkway, Mountain View, CA"
  cartograph geocode --component country=TW --component postal_code=100`,
		Args: cobra.NoArgs,
		RunE: a.withMetricsFlush(func(cmd *cobra.Command, _ []string) error {
			restrictions, err := parseComponents(components)
			if err != nil {
				return err
			}
			req.Components = restrictions
			a.applyDefaults(&req)

			results, err := a.client.Geocode(cmd.Context(), &req)
			if err != nil {
				return fmt.Errorf("geocoding failed: %w", err)
			}

			return printResults(cmd.OutOrStdout(), results, shortName)
		}),
	}

	cmd.Flags().StringVar(&req.Address, "address", "", "free-text address to geocode")
	cmd.Flags().StringVar(&req.PlaceID, "place-id", "", "provider place identifier")
	cmd.Flags().StringArrayVar(&components, "component", nil, "component restriction as key=value (repeatable)")
	cmd.Flags().StringVar(&req.Language, "language", "", "language of the results")
	cmd.Flags().StringVar(&req.Region, "region", "", "region bias as a ccTLD code")
	cmd.Flags().BoolVar(&shortName, "short-name", false, "print the short form of the postal code")

	return cmd
}

func newReverseCmd(a *app) *cobra.Command {
	var (
		latLng    maps.LatLng
		req       maps.GeocodingRequest
		shortName bool
	)

	cmd := &cobra.Command{
		Use:     "reverse",
		Short:   "Resolve coordinates into addresses",
		Example: `  cartograph reverse --lat 40.714224 --lng -73.961452`,
		Args:    cobra.NoArgs,
		RunE: a.withMetricsFlush(func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				req.LatLng = &latLng
			}
			a.applyDefaults(&req)

			results, err := a.client.ReverseGeocode(cmd.Context(), &req)
			if err != nil {
				return fmt.Errorf("reverse geocoding failed: %w", err)
			}

			return printResults(cmd.OutOrStdout(), results, shortName)
		}),
	}

	cmd.Flags().Float64Var(&latLng.Lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&latLng.Lng, "lng", 0, "longitude in degrees")
	cmd.Flags().StringVar(&req.PlaceID, "place-id", "", "provider place identifier")
	cmd.Flags().StringVar(&req.Language, "language", "", "language of the results")
	cmd.Flags().BoolVar(&shortName, "short-name", false, "print the short form of the postal code")
	cmd.MarkFlagsRequiredTogether("lat", "lng")

	return cmd
}

// parseComponents turns repeated key=value flags into component restrictions.
// No flags means no restrictions at all, which is not the same as an empty set.
func parseComponents(values []string) (map[maps.Component]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	components := make(map[maps.Component]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || key == "" || val == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidComponent, value)
		}
		components[maps.Component(key)] = val
	}

	return components, nil
}

func printResults(w io.Writer, results []maps.GeocodingResult, shortName bool) error {
	for i := range results {
		result := &results[i]

		location := "-"
		if latLng, err := geocoding.ExtractLatLng(result); err == nil {
			location = fmt.Sprintf("%f,%f", latLng.Lat, latLng.Lng)
		}

		postalCode := "-"
		if code, found, err := geocoding.ExtractPostalCode(result, shortName); err == nil && found {
			postalCode = code
		}

		if _, err := fmt.Fprintf(w, "%d. %s\n   location: %s\n   postal code: %s\n",
			i+1, result.FormattedAddress, location, postalCode); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	return nil
}

// setupLogger initializes and returns a logger based on the environment provided.
// Logs go to stderr so that stdout only carries results.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
