package repository

import (
	"errors"
	"strings"
	"time"
)

// Config selects and configures a store implementation.
//
// Driver values:
//   - "memory": process memory, lost on restart
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

// Open initializes the configured store. An empty driver means "memory".
func Open(cfg Config, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(opts...), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg.Path, cfg.BusyTimeout, opts...)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
