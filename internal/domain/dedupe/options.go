// Package dedupe tracks which imported calendar instances were already
// accepted so that re-importing the same feed is idempotent.
package dedupe

// Option applies a configuration option to the in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of keys kept. When full, the oldest key is
// evicted. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
