package predictions

import "fmt"

// Kind tags every failure mode of a generation request. The service boundary
// maps kinds onto HTTP responses; nothing downstream inspects ad hoc shapes.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindValidation         Kind = "validation"
	KindProvider           Kind = "provider"
	KindPredictionFailed   Kind = "prediction_failed"
	KindPredictionCanceled Kind = "prediction_canceled"
	KindTimeout            Kind = "timeout"
	KindTransport          Kind = "transport"
	KindEmptyPayload       Kind = "empty_payload"
)

// Error is the single tagged error type of the orchestration core. Status is
// the provider HTTP status when one was observed (0 otherwise); Detail
// carries the response body or exception message for the debug panel.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func newProviderError(message string, status int, detail any) *Error {
	return &Error{Kind: KindProvider, Message: message, Status: status, Detail: detail}
}

func newTransportError(message string, cause error) *Error {
	detail := any(nil)
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Kind: KindTransport, Message: message, Detail: detail}
}
