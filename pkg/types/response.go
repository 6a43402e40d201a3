package types

// SuccessEnvelope wraps every 2xx payload of the configurator API.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a failed line or dialog action. Retryable tells the
// UI the same request may succeed later, as when the ERP backend was unreachable.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// SignalAccepted acknowledges a dialog signal; the session applies it asynchronously.
type SignalAccepted struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
