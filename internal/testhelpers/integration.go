//go:build integration
// +build integration

// Package testhelpers builds real collaborators for integration tests that
// talk to OpenWeatherMap.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/session"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey string
	APIURL string
	Policy lookup.Policy
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}

	policy, err := lookup.ParsePolicy(os.Getenv("LOOKUP_POLICY"))
	if err != nil {
		t.Fatalf("LOOKUP_POLICY: %v", err)
	}

	return IntegrationTestConfig{APIKey: apiKey, APIURL: apiURL, Policy: policy}
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

// SetupIntegrationSessions returns a session store whose controllers share one
// real client.
func SetupIntegrationSessions(t *testing.T, cfg IntegrationTestConfig) *session.Store {
	t.Helper()
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	wc := SetupIntegrationClient(t, cfg)
	return session.NewStore(func() *lookup.Controller {
		return lookup.NewController(wc, lookup.WithPolicy(cfg.Policy), lookup.WithLogger(logger))
	}, time.Hour, 100)
}
