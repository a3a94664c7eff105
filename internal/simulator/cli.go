package simulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/quorum/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithOptions(logger.Options{Writer: io.MultiWriter(os.Stdout, file)}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Quorum Oracle Simulator
=======================

Drives a running oracle with concurrent providers and verifies that every
published value is the median of the submissions the oracle recorded.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the oracle (default "http://localhost:9080")
  -requests int
        Number of requests to open (default 100)
  -providers string
        Comma separated provider ids (default "client1,client2,client3")
  -creator string
        Identity used to open requests (default: first provider)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -base int
        Center of the generated readings (default 150000)
  -spread int
        Readings fall within base +/- spread (default 5000)
  -replays int
        Submissions resent with the same Idempotency-Key (default 10)
  -jwt-secret string
        Authenticate with HS256 bearer tokens signed by this secret
  -jwt-issuer string
        Issuer claim for minted tokens
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated readings
  -log string
        Log file for simulation output (default: simulate_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run ./cmd/simulate

  # Five providers against an oracle with quorum 3
  go run ./cmd/simulate -providers p1,p2,p3,p4,p5 -requests 1000 -workers 32
`)
}
