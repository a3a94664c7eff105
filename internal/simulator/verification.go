package simulator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/okian/quorum/internal/domain/aggregation"
	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/logger"
)

// ErrMismatch is returned when a published value disagrees with the median
// of the submissions the oracle recorded.
var ErrMismatch = errors.New("published value does not match recorded submissions")

// verifyResults checks every request against its own recorded submissions
// and checks that the latest value belongs to the highest finalized id.
func verifyResults(ctx context.Context, client *HTTPClient, ids []uint64, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results", logger.Int("requests", len(ids)))

	var highest uint64
	for _, id := range ids {
		finalized, err := verifyRequest(ctx, client, id)
		if err != nil {
			stats.RequestsMismatched++
			logger.Get().Warn(ctx, "request verification failed",
				logger.Uint64("request_id", id), logger.Error(err))
			continue
		}
		if finalized {
			stats.RequestsVerified++
			if id > highest {
				highest = id
			}
		}
	}

	if highest > 0 {
		var latest ValueView
		if err := client.getJSON(ctx, "/value/latest", &latest); err != nil {
			return fmt.Errorf("latest value: %w", err)
		}
		// Other clients may have finalized newer requests meanwhile.
		if latest.RequestID < highest {
			return fmt.Errorf("%w: latest value is for request %d, expected at least %d",
				ErrMismatch, latest.RequestID, highest)
		}
	}

	if stats.RequestsMismatched > 0 {
		return fmt.Errorf("%w: %d of %d requests", ErrMismatch, stats.RequestsMismatched, len(ids))
	}
	logger.Get().Info(ctx, "result verification completed",
		logger.Int("verified", stats.RequestsVerified))
	return nil
}

// verifyRequest reports whether id is finalized and, if so, whether its value
// is the median of the recorded submissions on both read paths.
func verifyRequest(ctx context.Context, client *HTTPClient, id uint64) (bool, error) {
	path := "/requests/" + strconv.FormatUint(id, 10)

	var req RequestView
	if err := client.getJSON(ctx, path, &req); err != nil {
		return false, err
	}
	if req.Status != types.StatusFinalized.String() {
		return false, nil
	}
	if req.FinalizedValue == nil {
		return false, fmt.Errorf("%w: finalized request has no value", ErrMismatch)
	}

	values := make([]types.Value, len(req.Submissions))
	for i, s := range req.Submissions {
		values[i] = types.Value(s.Value)
	}
	want, err := aggregation.Resolve(values)
	if err != nil {
		return false, err
	}
	if types.Value(*req.FinalizedValue) != want {
		return false, fmt.Errorf("%w: snapshot has %d, median is %d", ErrMismatch, *req.FinalizedValue, want)
	}

	var v ValueView
	if err := client.getJSON(ctx, path+"/value", &v); err != nil {
		return false, err
	}
	if types.Value(v.Value) != want {
		return false, fmt.Errorf("%w: value endpoint has %d, median is %d", ErrMismatch, v.Value, want)
	}
	return true, nil
}
