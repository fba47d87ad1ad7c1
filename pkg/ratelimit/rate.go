// Package ratelimit implements fixed-window call budgets per provider and
// route. Admission atomically consumes one unit of quota; the limiter never
// blocks on its own, callers that want to wait must do so explicitly through
// WaitAdmit under their own deadline.
package ratelimit

import (
	"strconv"
	"strings"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// Rate is a fixed-window call budget: Limit calls per Window.
type Rate struct {
	Limit  int
	Window time.Duration
}

// String renders the rate in the "10/minute" grammar it was parsed from.
func (r Rate) String() string {
	unit := r.Window.String()

	switch r.Window {
	case time.Second:
		unit = "second"
	case time.Minute:
		unit = "minute"
	case time.Hour:
		unit = "hour"
	case 24 * time.Hour:
		unit = "day"
	}

	return strconv.Itoa(r.Limit) + "/" + unit
}

// ParseRate parses a "limit/unit" budget string such as "10/minute" or
// "20/hour". Supported units: second, minute, hour, day.
func ParseRate(s string) (Rate, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Rate{}, errors.Newf(errors.ErrCodeInvalidRate, "invalid rate %q, expected limit/unit", s)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit <= 0 {
		return Rate{}, errors.Newf(errors.ErrCodeInvalidRate, "invalid rate limit in %q", s)
	}

	var window time.Duration

	switch strings.TrimSpace(parts[1]) {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	case "day":
		window = 24 * time.Hour
	default:
		return Rate{}, errors.Newf(errors.ErrCodeInvalidRate, "invalid rate window in %q", s)
	}

	return Rate{Limit: limit, Window: window}, nil
}

// MustParseRate is ParseRate for compile-time constant rates; it panics on
// malformed input.
func MustParseRate(s string) Rate {
	rate, err := ParseRate(s)
	if err != nil {
		panic(err)
	}

	return rate
}

// Result reports the outcome of a single admission attempt.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
