package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/quorum/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes a complete simulation: open requests, let every provider
// report concurrently, replay some submissions and verify the published
// values.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Creator == "" && len(config.Providers) > 0 {
		config.Creator = config.Providers[0]
	}

	logger.Get().Info(ctx, "starting oracle simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("requests", config.Requests),
		logger.Int("providers", len(config.Providers)),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("jwt", config.JWTSecret != ""),
		logger.Bool("verbose", config.Verbose))

	if len(config.Providers) == 0 {
		return stats, fmt.Errorf("no providers configured")
	}

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Open requests
	ids, err := createRequests(ctx, client, config, stats)
	if err != nil {
		return stats, fmt.Errorf("request creation failed: %w", err)
	}

	// Step 3: Generate and submit readings concurrently
	readings := generateReadings(ctx, config, ids, stats)
	submitReadings(ctx, client, config, readings, stats)

	// Step 4: Replays must be recognized by Idempotency-Key
	if config.Replays > 0 {
		replayReadings(ctx, client, readings, config.Replays, stats)
	}

	// Step 5: Verify published values
	verifyErr := verifyResults(ctx, client, ids, stats)

	// Step 6: Save readings to file
	if config.OutputFile != "" {
		if err := saveReadingsToFile(ctx, config.OutputFile, readings); err != nil {
			logger.Get().Warn(ctx, "failed to save readings to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the oracle is serving.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, _, err := client.do(ctx, http.MethodGet, "/healthz", "", "", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveReadingsToFile writes the generated readings as a JSON array.
func saveReadingsToFile(ctx context.Context, filename string, readings []Reading) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "readings saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, readingsPerSecond float64

	if stats.ReadingsSubmitted > 0 {
		successRate = float64(stats.ReadingsAccepted) / float64(stats.ReadingsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		readingsPerSecond = float64(stats.ReadingsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("requestsCreated", stats.RequestsCreated),
		logger.Int("readingsGenerated", stats.ReadingsGenerated),
		logger.Int("readingsSubmitted", stats.ReadingsSubmitted),
		logger.Int("readingsAccepted", stats.ReadingsAccepted),
		logger.Int("readingsClosed", stats.ReadingsClosed),
		logger.Int("readingsFailed", stats.ReadingsFailed),
		logger.Int("finalizations", stats.Finalizations),
		logger.Int("replaysDuplicate", stats.ReplaysDuplicate),
		logger.Int("requestsVerified", stats.RequestsVerified),
		logger.Int("requestsMismatched", stats.RequestsMismatched),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("readingsPerSecond", readingsPerSecond))
}
