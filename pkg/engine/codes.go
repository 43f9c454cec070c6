// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"fmt"
)

// Code is a native engine status code. The numbering mirrors GnuTLS so a
// cgo-backed implementation can pass its codes through unchanged; test
// doubles use the same values.
type Code int

// Engine status codes. Zero is success; negative values are failures.
const (
	CodeSuccess Code = 0

	// CodeAgain means the operation was suspended on a non-blocking
	// transport; consult Session.Direction for the blocked direction.
	CodeAgain Code = -28

	// CodeInterrupted means a signal interrupted the operation before
	// any progress; retrying is always safe.
	CodeInterrupted Code = -52

	// CodeRehandshake is delivered during a read when the peer asks for
	// (or answers) a renegotiation.
	CodeRehandshake Code = -37

	// CodeWarningAlertReceived is delivered when a warning-level alert
	// arrives; Session.LastAlert identifies it.
	CodeWarningAlertReceived Code = -16

	// CodeFatalAlertReceived is delivered when a fatal alert arrives.
	CodeFatalAlertReceived Code = -12

	// CodeUnexpectedPacket means a record arrived that is invalid in the
	// current protocol phase.
	CodeUnexpectedPacket Code = -15

	// CodeInvalidRequest means the call is not valid for the session in
	// its current configuration.
	CodeInvalidRequest Code = -50

	// CodeInsufficientCredentials means the handshake could not proceed
	// with the configured credentials.
	CodeInsufficientCredentials Code = -32

	// CodeNoCertificateFound means no certificate was presented where
	// one was needed.
	CodeNoCertificateFound Code = -49

	// CodeRequestedDataNotAvailable terminates enumeration queries such
	// as Session.ServerName.
	CodeRequestedDataNotAvailable Code = -56

	// CodeCertificateError covers malformed or unusable certificate
	// material handed to the engine.
	CodeCertificateError Code = -43

	// CodeCertificateKeyMismatch means a private key does not belong to
	// the certificate it was installed with.
	CodeCertificateKeyMismatch Code = -60

	// CodePrematureTermination means the transport closed mid-record
	// without a close-notify.
	CodePrematureTermination Code = -110

	// CodePushError and CodePullError wrap transport callback failures
	// other than would-block.
	CodePushError Code = -53
	CodePullError Code = -54

	// CodeDecryptionFailed covers record-layer authentication failures.
	CodeDecryptionFailed Code = -24

	// CodeInternalError is the engine's catch-all failure.
	CodeInternalError Code = -59

	// CodeInvalidSession means a session blob could not be deserialized.
	CodeInvalidSession Code = -10
)

var codeMessages = map[Code]string{
	CodeSuccess:                   "Success.",
	CodeAgain:                     "Resource temporarily unavailable, try again.",
	CodeInterrupted:               "Function was interrupted.",
	CodeRehandshake:               "Rehandshake was requested by the peer.",
	CodeWarningAlertReceived:      "A TLS warning alert has been received.",
	CodeFatalAlertReceived:        "A TLS fatal alert has been received.",
	CodeUnexpectedPacket:          "An unexpected TLS packet was received.",
	CodeInvalidRequest:            "The request is invalid.",
	CodeInsufficientCredentials:   "Insufficient credentials for that request.",
	CodeNoCertificateFound:        "No certificate was found.",
	CodeRequestedDataNotAvailable: "The requested data were not available.",
	CodeCertificateError:          "Error in the certificate.",
	CodeCertificateKeyMismatch:    "The certificate and the given key do not match.",
	CodePrematureTermination:      "The TLS connection was non-properly terminated.",
	CodePushError:                 "Error in the push function.",
	CodePullError:                 "Error in the pull function.",
	CodeDecryptionFailed:          "Decryption has failed.",
	CodeInternalError:             "Internal error.",
	CodeInvalidSession:            "The specified session has been invalidated for some reason.",
}

// String returns the stock message for the code.
func (c Code) String() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error code %d.", int(c))
}

// ErrTransportAgain is returned by pull/push callbacks when the transport
// is not ready in the needed direction. The engine converts it to an
// Error carrying CodeAgain and records the direction.
var ErrTransportAgain = errors.New("engine: transport would block")

// ErrTransportInterrupted is returned by pull/push callbacks when a signal
// interrupted the transport call before any bytes moved.
var ErrTransportInterrupted = errors.New("engine: transport interrupted")

// Error is a failure reported by the engine.
type Error struct {
	// Code is the engine status code.
	Code Code

	// Fatal marks codes that terminate the session. Non-fatal codes
	// (warning alerts, suspensions, renegotiation signals) permit the caller to
	// continue driving the session.
	Fatal bool
}

// Error returns the engine's message for the code.
func (e *Error) Error() string {
	return e.Code.String()
}

// NewError builds an engine error for code, deriving fatality from the
// standard classification: suspension, interruption, renegotiation,
// warning-alert and requested-data-not-available codes are non-fatal,
// everything else (including a received fatal alert) is fatal.
func NewError(code Code) *Error {
	switch code {
	case CodeAgain, CodeInterrupted, CodeRehandshake,
		CodeWarningAlertReceived, CodeRequestedDataNotAvailable:
		return &Error{Code: code}
	}
	return &Error{Code: code, Fatal: true}
}

// AsError extracts an engine *Error from err, if one is present.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
