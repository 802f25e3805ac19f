package payments

import (
	"errors"
	"fmt"
)

type GatewayErrorKind string

const (
	// GatewayUnavailable: transport failure or provider 5xx. The caller may retry.
	GatewayUnavailable GatewayErrorKind = "gateway_unavailable"
	// GatewayProtocol: response could not be understood. Not retried.
	GatewayProtocol GatewayErrorKind = "gateway_protocol"
	// GatewayRejected: provider does not know the reference. Terminal outcome.
	GatewayRejected GatewayErrorKind = "gateway_rejected"
)

// GatewayError is the only error shape gateway clients return.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string // provider message, safe to show
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func UnavailableError(msg string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayUnavailable, Message: msg, Err: err}
}

func ProtocolError(msg string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayProtocol, Message: msg, Err: err}
}

func RejectedError(msg string) *GatewayError {
	return &GatewayError{Kind: GatewayRejected, Message: msg}
}

func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// ErrInvalidSignature is returned by webhook parsers when the payload is not signed by the provider.
var ErrInvalidSignature = errors.New("invalid webhook signature")
