package simulator

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the oracle
	Requests   int           // Number of requests to open
	Providers  []string      // Provider ids that report on every request
	Creator    string        // Identity used to open requests
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	BaseValue  int64         // Center of the generated readings
	Spread     int64         // Readings fall within BaseValue +/- Spread
	Replays    int           // Submissions resent with the same Idempotency-Key
	JWTSecret  string        // When set, callers authenticate with HS256 bearer tokens
	JWTIssuer  string        // Issuer claim for minted tokens
	OutputFile string        // Output file for the generated readings
	LogFile    string        // Log file for simulation output
	Verbose    bool          // Enable verbose logging
}

// Reading is one provider's value for one request.
type Reading struct {
	RequestID      uint64 `json:"request_id"`
	Provider       string `json:"provider"`
	Value          int64  `json:"value"`
	IdempotencyKey string `json:"idempotency_key"`
}

// RequestView mirrors the oracle's request snapshot.
type RequestView struct {
	RequestID      uint64           `json:"request_id"`
	Status         string           `json:"status"`
	Submissions    []SubmissionView `json:"submissions"`
	FinalizedValue *int64           `json:"finalized_value,omitempty"`
}

// SubmissionView mirrors a recorded submission.
type SubmissionView struct {
	ProviderID string `json:"provider_id"`
	Value      int64  `json:"value"`
	Index      int    `json:"index"`
}

// ValueView mirrors the value endpoints.
type ValueView struct {
	RequestID uint64 `json:"request_id"`
	Value     int64  `json:"value"`
	Display   string `json:"display"`
}

// AckResponse represents the response from a submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Finalized bool   `json:"finalized"`
}

// Stats holds simulation statistics.
type Stats struct {
	RequestsCreated    int
	ReadingsGenerated  int
	ReadingsSubmitted  int
	ReadingsAccepted   int
	ReadingsClosed     int
	ReadingsFailed     int
	Finalizations      int
	ReplaysDuplicate   int
	RequestsVerified   int
	RequestsMismatched int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
