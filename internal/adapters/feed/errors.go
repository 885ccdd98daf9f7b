package feed

import "errors"

var (
	// ErrEmptyURL is returned for a feed configured without a URL.
	ErrEmptyURL = errors.New("feed URL is empty")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("refresher already started")
)

// StatusError reports a non-success HTTP status from a feed.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "unexpected feed status: " + e.Status }
