package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// errLookupFailed signals a Failure that has already been rendered; main exits 1 silently.
var errLookupFailed = errors.New("lookup failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errLookupFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	verbose bool

	logger *zap.Logger
	cfg    *config.Config
	client client.WeatherClient
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "weather-lookup",
		Short:             "Look up current weather for a city",
		Long:              "Simple Weather: type a city, get its current conditions from OpenWeatherMap.",
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := observability.FlushTelemetry(a.logger); err != nil {
				fmt.Fprintln(os.Stderr, "telemetry flush:", err)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newGetCmd(a),
		newInteractiveCmd(a),
		newServeCmd(a),
		newCheckCmd(a),
	)
	return root
}

// setup builds the logger, loads configuration and creates the weather client.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	level := os.Getenv("LOG_LEVEL")
	if a.verbose {
		level = "debug"
	}
	logger, err := observability.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	wc, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return fmt.Errorf("weather client: %w", err)
	}
	a.client = wc

	logger.Debug("configured",
		zap.String("api_url", cfg.WeatherAPIURL),
		zap.Duration("api_timeout", cfg.WeatherAPITimeout),
		zap.Stringer("policy", cfg.LookupPolicy))
	return nil
}

func (a *app) newController() *lookup.Controller {
	return lookup.NewController(a.client, lookup.WithPolicy(a.cfg.LookupPolicy), lookup.WithLogger(a.logger))
}
