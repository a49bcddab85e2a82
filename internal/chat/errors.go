package chat

import (
	"fmt"
)

// ConnectionError indicates the realtime channel could not be established
// or an emit was refused. Fatal to the session when returned from Open.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func NewConnectionError(message string, err error) *ConnectionError {
	return &ConnectionError{
		Message: message,
		Err:     err,
	}
}

// MalformedEventError wraps an inbound event which could not be decoded or
// was missing required fields. Such events are dropped and logged, never
// fatal to the session.
type MalformedEventError struct {
	Event string
	Err   error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %q event: %s", e.Event, e.Err.Error())
	}

	return fmt.Sprintf("malformed %q event", e.Event)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

func NewMalformedEventError(event string, err error) *MalformedEventError {
	return &MalformedEventError{
		Event: event,
		Err:   err,
	}
}
