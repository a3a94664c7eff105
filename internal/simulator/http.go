package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/quorum/internal/adapters/http/api"
	"github.com/okian/quorum/internal/adapters/http/auth"
	"github.com/okian/quorum/pkg/logger"
)

// HTTPClient talks to the oracle on behalf of many callers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	secret  []byte
	issuer  string

	mu     sync.Mutex
	tokens map[string]string
}

// newHTTPClient creates a client; a non-empty secret switches to bearer tokens.
func newHTTPClient(config *Config) *HTTPClient {
	c := &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		issuer:  config.JWTIssuer,
		tokens:  make(map[string]string),
	}
	if config.JWTSecret != "" {
		c.secret = []byte(config.JWTSecret)
	}
	return c
}

// authorize attaches caller credentials to req.
func (c *HTTPClient) authorize(req *http.Request, caller string) error {
	if caller == "" {
		return nil
	}
	if c.secret == nil {
		req.Header.Set(auth.CallerHeader, caller)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[caller]
	if !ok {
		var err error
		token, err = auth.IssueToken(c.secret, caller, c.issuer, tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", caller, err)
		}
		c.tokens[caller] = token
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// do sends a request and returns the status code and body.
func (c *HTTPClient) do(ctx context.Context, method, path, caller, key string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(api.IdempotencyHeader, key)
	}
	if err := c.authorize(req, caller); err != nil {
		return 0, nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// getJSON fetches path into v, expecting 200.
func (c *HTTPClient) getJSON(ctx context.Context, path string, v interface{}) error {
	status, body, err := c.do(ctx, http.MethodGet, path, "", "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, status, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, v)
}

// createRequests opens n requests sequentially so ids are ascending.
func createRequests(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]uint64, error) {
	logger.Get().Info(ctx, "creating requests", logger.Int("requests", config.Requests))

	ids := make([]uint64, 0, config.Requests)
	for i := 0; i < config.Requests; i++ {
		status, body, err := client.do(ctx, http.MethodPost, "/requests", config.Creator, "", nil)
		if err != nil {
			return ids, fmt.Errorf("create request %d: %w", i, err)
		}
		if status != http.StatusCreated {
			return ids, fmt.Errorf("create request %d: status %d: %s", i, status, bytes.TrimSpace(body))
		}
		var created struct {
			RequestID uint64 `json:"request_id"`
		}
		if err := json.Unmarshal(body, &created); err != nil {
			return ids, fmt.Errorf("decode created request: %w", err)
		}
		ids = append(ids, created.RequestID)
	}

	stats.RequestsCreated = len(ids)
	return ids, nil
}

// submitReadings submits readings concurrently using a worker pool.
func submitReadings(ctx context.Context, client *HTTPClient, config *Config, readings []Reading, stats *Stats) {
	logger.Get().Info(ctx, "submitting readings",
		logger.Int("readings", len(readings)),
		logger.Int("workers", config.Workers))

	var (
		submitted int64
		accepted  int64
		finalized int64
		closed    int64
		failed    int64
	)

	var lastReport atomic.Int64
	readingChan := make(chan Reading, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for reading := range readingChan {
				if ctx.Err() != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				switch submitSingleReading(ctx, client, reading) {
				case outcomeFinalized:
					atomic.AddInt64(&finalized, 1)
					atomic.AddInt64(&accepted, 1)
				case outcomeAccepted, outcomeDuplicate:
					atomic.AddInt64(&accepted, 1)
				case outcomeClosed:
					atomic.AddInt64(&closed, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				total := atomic.AddInt64(&submitted, 1)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if config.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					logger.Get().Info(ctx, "progress",
						logger.Int64("submitted", total),
						logger.Int("total", len(readings)),
						logger.Int64("finalized", atomic.LoadInt64(&finalized)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	go func() {
		defer close(readingChan)
		for _, r := range readings {
			select {
			case <-ctx.Done():
				return
			case readingChan <- r:
			}
		}
	}()

	wg.Wait()

	stats.ReadingsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ReadingsAccepted = int(atomic.LoadInt64(&accepted))
	stats.Finalizations = int(atomic.LoadInt64(&finalized))
	stats.ReadingsClosed = int(atomic.LoadInt64(&closed))
	stats.ReadingsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "submission completed",
		logger.Int("accepted", stats.ReadingsAccepted),
		logger.Int("finalizations", stats.Finalizations),
		logger.Int("closed", stats.ReadingsClosed),
		logger.Int("failed", stats.ReadingsFailed))
}

// submitSingleReading submits one reading and classifies the outcome.
func submitSingleReading(ctx context.Context, client *HTTPClient, r Reading) string {
	path := "/requests/" + strconv.FormatUint(r.RequestID, 10) + "/submissions"
	status, body, err := client.do(ctx, http.MethodPost, path, r.Provider, r.IdempotencyKey,
		map[string]int64{"value": r.Value})
	if err != nil {
		return outcomeFailed
	}

	switch status {
	case http.StatusAccepted:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Finalized {
			return outcomeFinalized
		}
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusConflict:
		// Quorum reached before this provider reported.
		return outcomeClosed
	default:
		return outcomeFailed
	}
}

// replayReadings resends the first n readings with their original keys and
// counts how many the oracle recognized as duplicates.
func replayReadings(ctx context.Context, client *HTTPClient, readings []Reading, n int, stats *Stats) {
	if n > len(readings) {
		n = len(readings)
	}
	for _, r := range readings[:n] {
		if submitSingleReading(ctx, client, r) == outcomeDuplicate {
			stats.ReplaysDuplicate++
		}
	}
	logger.Get().Info(ctx, "replays completed",
		logger.Int("replayed", n),
		logger.Int("duplicates", stats.ReplaysDuplicate))
}
