package ai

import (
	"errors"
	"fmt"
)

// TransportError reports a model call that could not complete, e.g. due to the network, authentication or rate
// limiting. The core never retries these.
type TransportError struct {
	Op  string // "complete" or "list models"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a model reply that was not authored by the assistant
type MalformedResponseError struct {
	Role Role
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("expected an assistant message, got role %q", e.Role)
}

// IsTransportError reports whether err is, or wraps, a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
