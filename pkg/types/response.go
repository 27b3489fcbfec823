// Package types holds the wire envelopes shared by every API response.
// Clients rely on the shape: success bodies always nest under "data" and
// failures under "error", so the two can never be confused.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError is the client-visible failure payload. Code mirrors the internal
// error taxonomy; Details appears only for codes that allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
