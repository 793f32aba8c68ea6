package probe

import "fmt"

// Kind classifies the result of a single probe.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindRedirect       Kind = "redirect"
	KindClientError    Kind = "client_error"
	KindServerError    Kind = "server_error"
	KindTransportError Kind = "transport_error"
	KindTimeout        Kind = "timeout"
	// KindProtocolError covers status codes outside 200-599.
	KindProtocolError Kind = "protocol_error"
)

// Outcome is the classified result of one probe execution.
// StatusCode is 0 for transport errors and timeouts.
type Outcome struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message,omitempty"`
}

// OK reports whether the probe succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil for a successful outcome and a *FailureError otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &FailureError{Outcome: o}
}

// FailureError carries a failed Outcome through error-returning code paths.
type FailureError struct {
	Outcome Outcome
}

func (e *FailureError) Error() string {
	return e.Outcome.Message
}

// Classify maps an HTTP status code to an Outcome.
func Classify(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Outcome{Kind: KindSuccess, StatusCode: statusCode}
	case statusCode >= 300 && statusCode < 400:
		return Outcome{
			Kind:       KindRedirect,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Unexpected HTTP status code: %d", statusCode),
		}
	case statusCode >= 400 && statusCode < 500:
		return Outcome{
			Kind:       KindClientError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Client error (4xx) received: %d", statusCode),
		}
	case statusCode >= 500 && statusCode < 600:
		return Outcome{
			Kind:       KindServerError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Server error (5xx) received: %d", statusCode),
		}
	default:
		return Outcome{
			Kind:       KindProtocolError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Unexpected HTTP status code: %d", statusCode),
		}
	}
}

func transportFailure(err error) Outcome {
	return Outcome{
		Kind:    KindTransportError,
		Message: fmt.Sprintf("Request error: %v", err),
	}
}

func timeoutFailure() Outcome {
	return Outcome{Kind: KindTimeout, Message: "Request timeout"}
}
