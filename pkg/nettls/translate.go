// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// translate maps an engine failure onto the typed error taxonomy. It is
// the only place engine errors are interpreted, one call site per
// endpoint operation, and it consults the engine's direction hint at the
// moment an Again code is seen, before any further engine call can
// clobber it.
//
// Renegotiation signals double as state transitions: a Rehandshake code
// while our own switch is pending means the peer accepted (move to
// Switching so Hello completes it), while a no_renegotiation warning
// alert in that situation means the peer refused (fall back to DataRW).
func (ep *Endpoint) translate(op operation, err error, warnings bool) error {
	ee, ok := engine.AsError(err)
	if !ok {
		// Transport errors other than would-block/EINTR pass through
		// the engine uninterpreted.
		return fmt.Errorf("nettls: %s: %w", op, err)
	}

	switch ee.Code {
	case engine.CodeAgain:
		if ep.sess.Direction() == engine.DirWrite {
			return ErrAgainWrite
		}
		return ErrAgainRead

	case engine.CodeInterrupted:
		return ErrInterrupted

	case engine.CodeRehandshake:
		if ep.state == StateDataRS || ep.state == StateSwitching {
			ep.state = StateSwitching
			return &SwitchResponseError{Accepted: true}
		}
		return ErrSwitchRequest

	case engine.CodeWarningAlertReceived:
		alert := ep.sess.LastAlert()
		if alert == engine.AlertNoRenegotiation {
			if ep.state == StateDataRS {
				ep.state = StateDataRW
			}
			return &SwitchResponseError{Accepted: false}
		}
		if warnings {
			return &WarningError{Code: ee.Code, Alert: alert}
		}
	}

	if !ee.Fatal && warnings {
		return &WarningError{Code: ee.Code}
	}
	return ep.wrapEngine(ee)
}

// wrapEngine converts an engine failure into a fatal TLSError carrying
// the engine code. Query paths use it directly; operation paths go
// through translate.
func (ep *Endpoint) wrapEngine(err error) error {
	if ee, ok := engine.AsError(err); ok {
		return &TLSError{
			Code:       strconv.Itoa(int(ee.Code)),
			EngineCode: ee.Code,
			cause:      ee,
		}
	}
	return fmt.Errorf("nettls: %w", err)
}
