package models

import (
	"fmt"
	"strings"
)

// Status is the lending state of a book at one library. Values are ordered by
// precedence: a higher value is a better outcome for the reader.
type Status int

const (
	StatusUnknown Status = iota
	StatusUnavailable
	StatusHoldable
	StatusAvailable
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusHoldable:
		return "holdable"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Better reports whether s takes precedence over o.
func (s Status) Better(o Status) bool {
	return s > o
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus is the inverse of [Status.String].
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return StatusAvailable, nil
	case "holdable":
		return StatusHoldable, nil
	case "unavailable":
		return StatusUnavailable, nil
	case "unknown", "":
		return StatusUnknown, nil
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", s)
}

// Format is the medium a catalog entry is offered in.
type Format string

const (
	FormatEbook     Format = "ebook"
	FormatAudiobook Format = "audiobook"
	FormatPrint     Format = "print"
)

// ParseFormat maps catalog vocabulary onto a [Format]. Unrecognized values are reported with ok == false.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ebook", "e-book", "epub", "kindle", "pdf", "ebook-overdrive", "ebook-kindle", "ebook-epub-adobe", "ebook-epub-open", "ebook-pdf-adobe", "ebook-pdf-open", "ebook-media-do":
		return FormatEbook, true
	case "audiobook", "audio", "audiobook-overdrive", "audiobook-mp3":
		return FormatAudiobook, true
	case "print", "book", "hardcover", "paperback":
		return FormatPrint, true
	}
	return "", false
}

// DefaultFormatPriority is the tie-break order used when none is configured.
var DefaultFormatPriority = []Format{FormatEbook, FormatAudiobook, FormatPrint}

// MatchReason explains how a result was (or was not) matched.
type MatchReason string

const (
	ReasonNone                     MatchReason = ""
	ReasonISBN                     MatchReason = "isbn"
	ReasonTitleAuthor              MatchReason = "title_author"
	ReasonNoMatch                  MatchReason = "no_match"
	ReasonUnrecognizedAvailability MatchReason = "unrecognized_availability"
)
