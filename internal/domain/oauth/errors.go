package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken signals that no token is stored for the owner. It is
	// recoverable: the dispatcher restarts the authorization flow.
	ErrMissingToken = errors.New("oauth: no token stored for owner")
	// ErrInvalidState indicates the callback state did not match the nonce
	// stored in the session. Fatal for the request, possible CSRF/replay.
	ErrInvalidState = errors.New("oauth: state mismatch")
	// ErrStaleToken is reported by protected handlers when Canvas rejects a
	// stored token ahead of its recorded expiry. The dispatcher discards the
	// record and restarts the flow.
	ErrStaleToken = errors.New("oauth: stored token rejected by provider")
)

// ExchangeError reports a failed token-endpoint exchange: a non-200 status,
// a malformed success body, or a transport failure. Body carries the raw
// provider response for operator diagnosis.
type ExchangeError struct {
	GrantType string
	Status    int
	Body      string
	Err       error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s exchange failed: %v", e.GrantType, e.Err)
	}
	return fmt.Sprintf("oauth: %s exchange failed: status=%d body=%s", e.GrantType, e.Status, e.Body)
}

func (e *ExchangeError) Unwrap() error { return e.Err }
