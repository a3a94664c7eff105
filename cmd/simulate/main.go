package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/quorum/internal/simulator"
)

// Default configuration constants.
const (
	defaultRequests    = 100
	defaultProviders   = "client1,client2,client3"
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultBaseValue   = 150_000
	defaultSpread      = 5_000
	defaultReplays     = 10
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the oracle")
		requests   = flag.Int("requests", defaultRequests, "Number of requests to open")
		providers  = flag.String("providers", defaultProviders, "Comma separated provider ids")
		creator    = flag.String("creator", "", "Identity used to open requests (default: first provider)")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		base       = flag.Int64("base", defaultBaseValue, "Center of the generated readings")
		spread     = flag.Int64("spread", defaultSpread, "Readings fall within base +/- spread")
		replays    = flag.Int("replays", defaultReplays, "Submissions resent with the same Idempotency-Key")
		jwtSecret  = flag.String("jwt-secret", "", "Authenticate with HS256 bearer tokens signed by this secret")
		jwtIssuer  = flag.String("jwt-issuer", "", "Issuer claim for minted tokens")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated readings")
		logFile    = flag.String("log", "", "Log file for simulation output (default: simulate_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	var ids []string
	for _, p := range strings.Split(*providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}

	config := &simulator.Config{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		Requests:   *requests,
		Providers:  ids,
		Creator:    *creator,
		Workers:    *workers,
		Timeout:    *timeout,
		BaseValue:  *base,
		Spread:     *spread,
		Replays:    *replays,
		JWTSecret:  *jwtSecret,
		JWTIssuer:  *jwtIssuer,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
