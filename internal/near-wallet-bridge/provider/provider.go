// Package provider resolves and talks to the HOT wallet provider.
//
// Every transport exposes the same primitive: one request, one response.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// RequestFailedName is the error name the wallet uses for structured failures.
const RequestFailedName = "RequestFailed"

// ErrNoTransport is returned by an SDK handle built without a transport.
var ErrNoTransport = errors.New("wallet sdk has no transport")

// Requester is a handle on the wallet provider.
type Requester interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Injector is implemented by handles that can tell whether the wallet runtime
// injected them into the current host.
type Injector interface {
	Injected() bool
}

// RequestFailedError is a structured failure reported by the wallet itself,
// as opposed to a transport failure.
type RequestFailedError struct {
	Method  string          `json:"method,omitempty"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e *RequestFailedError) Name() string { return RequestFailedName }

func (e *RequestFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", RequestFailedName, msg)
	}
	return fmt.Sprintf("%s: %s: %s", RequestFailedName, e.Method, msg)
}

// AsRequestFailed extracts the wallet's structured failure from err, if any.
func AsRequestFailed(err error) (*RequestFailedError, bool) {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf, true
	}
	return nil, false
}

// remoteError is the {name, message, payload} shape relays use on the wire.
type remoteError struct {
	Name    string          `json:"name"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func (e *remoteError) toRequestFailed(method string) *RequestFailedError {
	return &RequestFailedError{
		Method:  method,
		Code:    e.Code,
		Message: e.Message,
		Payload: e.Payload,
	}
}
