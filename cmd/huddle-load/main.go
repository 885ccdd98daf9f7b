package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/huddle/internal/loadtest"
	"github.com/okian/huddle/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers        = 200
	defaultSearches     = 1000
	defaultGroupSize    = 3
	defaultDuration     = 30
	defaultDays         = 5
	defaultBlocksPerDay = 4
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultDrainTimeout = time.Minute
	defaultTestTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.Int("users", defaultUsers, "Number of synthetic users")
		searches   = flag.Int("searches", defaultSearches, "Number of meeting searches")
		group      = flag.Int("group", defaultGroupSize, "Participants per search")
		duration   = flag.Int("duration", defaultDuration, "Meeting length in minutes")
		days       = flag.Int("days", defaultDays, "Days of busy time to generate")
		blocks     = flag.Int("blocks", defaultBlocksPerDay, "Maximum busy blocks per user and day")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		rps        = flag.Float64("rps", 0, "Client side request rate, 0 for unlimited")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain      = flag.Duration("drain", defaultDrainTimeout, "Time allowed for queued imports to finish")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Fixture seed")
		outputFile = flag.String("output", "", "Write the generated fixture as JSON")
		logFile    = flag.String("log", "", "Log file for test output (default: load_test_TIMESTAMP.log)")
		logFormat  = flag.String("format", "text", "Log format, text or json")
		verbose    = flag.Bool("verbose", false, "Log every failed request")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closeLog, err := loadtest.SetupLogging(*logFile, *logFormat)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:      *baseURL,
		Users:        *users,
		Searches:     *searches,
		GroupSize:    *group,
		Duration:     *duration,
		Days:         *days,
		BlocksPerDay: *blocks,
		Workers:      *workers,
		RPS:          *rps,
		Timeout:      *timeout,
		DrainTimeout: *drain,
		Seed:         *seed,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}
	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load test failed", logger.Error(err))
		_ = closeLog()
		os.Exit(1)
	}
}
