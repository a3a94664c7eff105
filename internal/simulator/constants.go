package simulator

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	tokenTTL             = 10 * time.Minute
	progressInterval     = time.Second
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeFinalized = "finalized"
	outcomeDuplicate = "duplicate"
	outcomeClosed    = "closed"
	outcomeFailed    = "failed"
)
