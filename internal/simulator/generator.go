package simulator

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/quorum/pkg/logger"
)

// randomOffset returns a value in [-spread, spread] using crypto/rand.
func randomOffset(spread int64) int64 {
	if spread <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(2*spread+1))
	if err != nil {
		return 0
	}
	return n.Int64() - spread
}

// generateReadings creates one reading per provider per request. Readings
// of the same request are interleaved with other requests so submitters
// race on every request.
func generateReadings(ctx context.Context, config *Config, ids []uint64, stats *Stats) []Reading {
	readings := make([]Reading, 0, len(ids)*len(config.Providers))
	for _, provider := range config.Providers {
		for _, id := range ids {
			readings = append(readings, Reading{
				RequestID:      id,
				Provider:       provider,
				Value:          config.BaseValue + randomOffset(config.Spread),
				IdempotencyKey: uuid.NewString(),
			})
		}
	}

	stats.ReadingsGenerated = len(readings)
	logger.Get().Info(ctx, "generated readings", logger.Int("count", len(readings)))
	return readings
}
