package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthTimeout means the interactive sign-in flow did not finish
	// within its deadline.
	ErrAuthTimeout = errors.New("portal: sign-in timed out")
	// ErrAuthRejected means the identity provider refused the credentials.
	ErrAuthRejected = errors.New("portal: credentials rejected")
	// ErrNoSession means a card request was attempted without an
	// authenticated session.
	ErrNoSession = errors.New("portal: no authenticated session")
	// ErrDecode means the response body was not the expected JSON envelope.
	ErrDecode = errors.New("portal: undecodable transaction envelope")
)

// HTTPError reports a non-2xx response from the portal API.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("portal: %s returned HTTP %d", e.URL, e.StatusCode)
}
