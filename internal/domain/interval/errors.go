package interval

import "errors"

// Sentinel kinds for interval errors.
var (
	ErrMalformedClock = errors.New("malformed time of day")
)
