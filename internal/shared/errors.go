package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrUnknownFamily      = fmt.Errorf("unknown catalog family")

	// Catalog errors. Every failed lookup wraps exactly one of these.
	ErrNetwork     = fmt.Errorf("network error")
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrParse       = fmt.Errorf("unparseable catalog response")
	ErrTimeout     = fmt.Errorf("operation timed out")

	// Shelf errors
	ErrShelfNotFound = fmt.Errorf("shelf not found")
	ErrBookNotFound  = fmt.Errorf("book not found")
	ErrEmptyShelf    = fmt.Errorf("shelf has no books")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// Error kinds as they appear in reports.
const (
	KindNetwork     = "network"
	KindRateLimited = "rate_limited"
	KindParse       = "parse"
	KindTimeout     = "timeout"
	KindOther       = "other"
)

// ErrorKind classifies err into one of the report kinds. Nil yields "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindOther
	}
}

// ErrorFromKind rebuilds a sentinel-wrapped error from a kind and message, for
// results decoded from JSON.
func ErrorFromKind(kind, msg string) error {
	var base error
	switch kind {
	case "":
		return nil
	case KindTimeout:
		base = ErrTimeout
	case KindRateLimited:
		base = ErrRateLimited
	case KindParse:
		base = ErrParse
	case KindNetwork:
		base = ErrNetwork
	default:
		return errors.New(msg)
	}
	msg = strings.TrimPrefix(msg, base.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}
