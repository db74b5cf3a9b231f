package oauth

import "time"

// FlowState captures the transient values written at the start of one
// authorization round trip and read back at the callback.
type FlowState struct {
	RequestState string    `json:"request_state"`
	InitialURI   string    `json:"initial_uri"`
	RedirectURI  string    `json:"redirect_uri"`
	CanvasDomain string    `json:"canvas_domain,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenGrant models a successful response from the Canvas token endpoint.
// RefreshToken is empty on refresh_token grants when Canvas does not rotate.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CallbackInput carries the query parameters Canvas sends to the callback
// route. ErrorParam is provider-reported denial data, not a Go error.
type CallbackInput struct {
	Code       string
	State      string
	ErrorParam string
}
