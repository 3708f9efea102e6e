package api

import "fmt"

// RejectedError is returned when the server answered with a non-2xx status.
// Message is the server's own explanation, suitable for showing to the user.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// TransportError is returned when no usable response was received: the
// request could not be sent, the body could not be read, or a 2xx body
// could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
