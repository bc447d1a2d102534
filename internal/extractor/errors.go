package extractor

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultRetryAfter = 60 * time.Second

// RateLimitError reports that an extraction provider asked callers to back
// off. The HTTP layer surfaces RetryAfter to the client.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s extraction rate limited, retry after %s: %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NewRateLimitError builds a RateLimitError; a non-positive retryAfterSecs
// falls back to one minute.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	retryAfter := defaultRetryAfter
	if retryAfterSecs > 0 {
		retryAfter = time.Duration(retryAfterSecs) * time.Second
	}
	return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Err: err}
}

// ParseRetryAfterHeader converts a Retry-After value, given either as
// delta-seconds or as an HTTP date, into whole seconds. Unparseable or past
// values yield 0.
func ParseRetryAfterHeader(val string) int {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0
		}
		return secs
	}
	at, err := http.ParseTime(val)
	if err != nil {
		return 0
	}
	if wait := time.Until(at); wait > 0 {
		return int(wait.Round(time.Second).Seconds())
	}
	return 0
}
