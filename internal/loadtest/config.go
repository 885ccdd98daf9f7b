// Package loadtest drives a running huddle server end to end: it registers
// synthetic users, imports generated calendars for them, runs concurrent
// slot searches and checks every returned slot against the generated busy
// time.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Users        int           // Number of synthetic users
	Searches     int           // Number of slot searches to run
	GroupSize    int           // Participants per search
	Duration     int           // Meeting length in minutes
	Days         int           // Days of busy time to generate, starting today
	BlocksPerDay int           // Upper bound of busy blocks per user and day
	Workers      int           // Number of concurrent workers
	RPS          float64       // Client side request rate, 0 for unlimited
	Timeout      time.Duration // HTTP request timeout
	DrainTimeout time.Duration // How long to wait for the import queue to empty
	Seed         uint64        // Seed for the fixture generator
	OutputFile   string        // Optional JSON dump of the generated fixture
	Verbose      bool          // Log every failed request
}

// Stats holds run statistics.
type Stats struct {
	UsersRegistered   int
	CalendarsImported int
	EntriesQueued     int
	EntriesDuplicate  int
	Searches          int
	SearchesFailed    int
	SlotsReturned     int
	Violations        int
	RateLimited       int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
