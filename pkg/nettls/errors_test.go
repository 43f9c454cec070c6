// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/engine/enginetest"
)

func TestErrorMessage_Sentinels(t *testing.T) {
	for _, code := range []string{
		CodeCertVerificationFailed,
		CodeNameVerificationFailed,
		CodeUserVerificationFailed,
		CodeUnexpectedState,
		CodeNoCertificateFound,
	} {
		msg := ErrorMessage(code)
		assert.NotEmpty(t, msg)
		assert.NotContains(t, msg, "unknown")
	}
}

func TestErrorMessage_EngineCodes(t *testing.T) {
	p := New(enginetest.NewEngine(), nil)

	assert.Equal(t, engine.CodeAgain.String(), p.ErrorMessage("-28"))
	assert.Equal(t, ErrorMessage(CodeUnexpectedState), p.ErrorMessage(CodeUnexpectedState))
	assert.Contains(t, p.ErrorMessage("gibberish"), "unknown")
}

func TestTLSError_Identity(t *testing.T) {
	assert.ErrorIs(t, ErrNameVerificationFailed, ErrNameVerificationFailed)
	assert.NotErrorIs(t, ErrNameVerificationFailed, ErrCertVerificationFailed)

	var te *TLSError
	assert.ErrorAs(t, ErrUserVerificationFailed, &te)
	assert.Equal(t, CodeUserVerificationFailed, te.Code)
	assert.NotEmpty(t, te.Error())
}

func TestUnexpectedStateError_Matching(t *testing.T) {
	err := error(&UnexpectedStateError{Op: "send", State: StateEnd})
	assert.ErrorIs(t, err, ErrUnexpectedState)
	assert.Contains(t, err.Error(), "send")
	assert.Contains(t, err.Error(), "End")
}

func TestAsSwitchResponse(t *testing.T) {
	accepted, ok := AsSwitchResponse(&SwitchResponseError{Accepted: true})
	assert.True(t, ok)
	assert.True(t, accepted)

	_, ok = AsSwitchResponse(errors.New("unrelated"))
	assert.False(t, ok)
}

func TestWarningError_Message(t *testing.T) {
	w := &WarningError{Code: engine.CodeWarningAlertReceived, Alert: engine.AlertUserCanceled}
	assert.Contains(t, w.Error(), "user_canceled")

	w = &WarningError{Code: engine.CodeRequestedDataNotAvailable}
	assert.NotEmpty(t, w.Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Start", StateStart.String())
	assert.Equal(t, "DataRS", StateDataRS.String())
	assert.Equal(t, "End", StateEnd.String())
	assert.Equal(t, "Invalid", State(42).String())
}
