// Package types holds the wire envelopes shared by every storefront
// endpoint. All success responses nest their payload under "data"; all
// failures carry a machine-readable code alongside the public message.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Details is only populated for codes
// whose metadata allows leaking field-level information.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
