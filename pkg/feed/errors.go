package feed

import (
	"errors"
	"fmt"
)

// ErrorKind classifies feed failures that are meaningful to subscribers
type ErrorKind string

const (
	KindNotFound    ErrorKind = "profile_not_found"
	KindUnavailable ErrorKind = "profile_unavailable"
	KindEmpty       ErrorKind = "empty_feed"
)

// Error represents a known feed error. Known errors are reported verbatim
// to the subscriber and never abort a sync cycle; anything else is logged
// internally and surfaced as a generic failure.
type Error struct {
	Kind    ErrorKind
	FeedID  string
	Message string
}

func (e *Error) Error() string {
	if e.FeedID != "" {
		return fmt.Sprintf("feed %s: %s", e.FeedID, e.Message)
	}
	return e.Message
}

// NotFoundError reports a feed identifier that does not resolve to a profile
func NotFoundError(feedID string) *Error {
	return &Error{Kind: KindNotFound, FeedID: feedID, Message: "profile was not found"}
}

// UnavailableError reports a profile that exists but cannot be read
func UnavailableError(feedID string) *Error {
	return &Error{Kind: KindUnavailable, FeedID: feedID, Message: "profile is private"}
}

// EmptyError reports a profile with no posts at all. Only meaningful before
// the first successful check; an empty result on a recheck is not an error.
func EmptyError(feedID string) *Error {
	return &Error{Kind: KindEmpty, FeedID: feedID, Message: "no posts were found for this profile"}
}

// IsKnown reports whether err belongs to the known feed error taxonomy
func IsKnown(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// KindOf returns the error kind, or "" for errors outside the taxonomy
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
