package sanity

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork means the request never produced a response.
	KindNetwork
	// KindStatus means the API answered with a non-200 status.
	KindStatus
	// KindDecode means the response body was not the expected JSON.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError describes a failed query. It is never returned for a query that
// legitimately matched nothing.
type FetchError struct {
	Kind        Kind
	StatusCode  int
	Description string // error.description from the API body, if any
	Body        string // truncated response body
	Err         error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Description != "" {
			return fmt.Sprintf("sanity: status %d: %s", e.StatusCode, e.Description)
		}
		return fmt.Sprintf("sanity: status %d", e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("sanity: %s: %v", e.Kind, e.Err)
		}
		return "sanity: " + e.Kind.String()
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the FetchError in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsStatus reports whether err is a status error with the given code.
func IsStatus(err error, code int) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindStatus && fe.StatusCode == code
}
