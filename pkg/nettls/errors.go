// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package nettls is a transport-agnostic TLS provider layer over a native
// TLS engine. It assembles X.509 credentials and reusable configurations,
// drives non-blocking endpoints through a handshake / data / renegotiation
// / shutdown state machine, and serializes sessions (with the side metadata
// the engine omits) for caching and resumption across endpoint instances.
//
// Endpoints are strictly non-blocking: every operation that exchanges
// bytes with the transport may suspend with ErrAgainRead or ErrAgainWrite,
// and the caller re-drives the same operation once the transport is ready
// in that direction. Retrying after a suspension is always safe.
package nettls

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// Fixed string identities for conditions detected by this layer rather
// than the engine. ErrorMessage resolves them to human text.
const (
	CodeCertVerificationFailed = "NETTLS_CERT_VERIFICATION_FAILED"
	CodeNameVerificationFailed = "NETTLS_NAME_VERIFICATION_FAILED"
	CodeUserVerificationFailed = "NETTLS_USER_VERIFICATION_FAILED"
	CodeUnexpectedState        = "NETTLS_UNEXPECTED_STATE"
	CodeNoCertificateFound     = "NETTLS_NO_CERTIFICATE_FOUND"
)

var sentinelMessages = map[string]string{
	CodeCertVerificationFailed: "certificate verification failed",
	CodeNameVerificationFailed: "the peer name does not match the peer certificate",
	CodeUserVerificationFailed: "user-driven verification failed",
	CodeUnexpectedState:        "operation not allowed in the current endpoint state",
	CodeNoCertificateFound:     "no certificate was found",
}

// Suspension and retry signals. These are recoverable: the caller retries
// the same operation once the condition clears.
var (
	// ErrAgainRead means the operation suspended waiting for the
	// transport to become readable.
	ErrAgainRead = errors.New("nettls: transport not readable, try again")

	// ErrAgainWrite means the operation suspended waiting for the
	// transport to become writable.
	ErrAgainWrite = errors.New("nettls: transport not writable, try again")

	// ErrInterrupted means a signal raced the operation before any
	// progress was made.
	ErrInterrupted = errors.New("nettls: operation interrupted, try again")
)

// Renegotiation control-flow signals. Neither is a failure.
var (
	// ErrSwitchRequest is raised by Recv when the peer asks for a
	// renegotiation; answer with AcceptSwitch or RefuseSwitch.
	ErrSwitchRequest = errors.New("nettls: peer requested a configuration switch")
)

// Construction and credential errors.
var (
	// ErrConfig indicates a configuration could not be built.
	ErrConfig = errors.New("nettls: invalid configuration")

	// ErrCredential indicates credential material could not be loaded or
	// assembled.
	ErrCredential = errors.New("nettls: invalid credentials")

	// ErrPasswordRequired indicates an encrypted private key was supplied
	// without its password.
	ErrPasswordRequired = errors.New("nettls: password required for encrypted key")
)

// ErrUnexpectedState is the errors.Is target for UnexpectedStateError.
var ErrUnexpectedState = errors.New("nettls: " + sentinelMessages[CodeUnexpectedState])

// TLSError is a fatal TLS-level failure. Code is either one of the
// NETTLS_ sentinel identities or the decimal value of a native engine
// code; EngineCode is non-zero in the latter case.
type TLSError struct {
	Code       string
	EngineCode engine.Code
	cause      error
}

// Error renders the sentinel or engine message.
func (e *TLSError) Error() string {
	if msg, ok := sentinelMessages[e.Code]; ok {
		return "nettls: " + msg
	}
	return fmt.Sprintf("nettls: %s", e.EngineCode)
}

// Unwrap exposes the originating engine error, if any.
func (e *TLSError) Unwrap() error {
	return e.cause
}

// Verification failures raised by Endpoint.Verify. Matched by identity
// with errors.Is.
var (
	ErrCertVerificationFailed = &TLSError{Code: CodeCertVerificationFailed}
	ErrNameVerificationFailed = &TLSError{Code: CodeNameVerificationFailed}
	ErrUserVerificationFailed = &TLSError{Code: CodeUserVerificationFailed}
	ErrNoCertificateFound     = &TLSError{Code: CodeNoCertificateFound}
)

// SwitchResponseError carries the peer's answer to a configuration switch
// through the error channel of Recv. It is control flow, not a failure.
type SwitchResponseError struct {
	// Accepted reports whether the peer agreed to renegotiate. When
	// true, complete the switch with Hello; when false, the endpoint is
	// back in its data state.
	Accepted bool
}

// Error describes the switch outcome.
func (e *SwitchResponseError) Error() string {
	if e.Accepted {
		return "nettls: peer accepted the configuration switch"
	}
	return "nettls: peer refused the configuration switch"
}

// AsSwitchResponse extracts a switch response from err.
func AsSwitchResponse(err error) (accepted bool, ok bool) {
	var sr *SwitchResponseError
	if errors.As(err, &sr) {
		return sr.Accepted, true
	}
	return false, false
}

// WarningError is a non-fatal engine condition surfaced to the caller,
// who may retry the operation or escalate.
type WarningError struct {
	// Code is the engine code that produced the warning.
	Code engine.Code

	// Alert is the received alert when Code is an alert code.
	Alert engine.Alert
}

// Error renders the warning with its engine message.
func (e *WarningError) Error() string {
	if e.Code == engine.CodeWarningAlertReceived {
		return fmt.Sprintf("nettls: warning alert received: %s", e.Alert)
	}
	return fmt.Sprintf("nettls: warning: %s", e.Code)
}

// UnexpectedStateError reports an operation invoked in a state where the
// transition table does not permit it. The endpoint is not modified.
type UnexpectedStateError struct {
	// Op is the rejected operation.
	Op string

	// State is the endpoint state at the time of the call.
	State State
}

// Error names the operation and state.
func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("nettls: %s not allowed in state %s", e.Op, e.State)
}

// Is matches ErrUnexpectedState.
func (e *UnexpectedStateError) Is(target error) bool {
	return target == ErrUnexpectedState
}

// ErrorMessage maps an error code to human-readable text. Sentinel
// NETTLS_ codes resolve locally; decimal engine codes resolve through the
// engine via Provider.ErrorMessage, which falls back to this function for
// sentinels.
func ErrorMessage(code string) string {
	if msg, ok := sentinelMessages[code]; ok {
		return msg
	}
	if n, err := strconv.Atoi(code); err == nil {
		return engine.Code(n).String()
	}
	return "unknown error " + code
}
