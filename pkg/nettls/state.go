// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

// State is the position of an endpoint in its lifecycle. Operations in
// progress hold a transient state (Handshake, Switching, Accepting,
// Refusing) so that a retry after a suspension is permitted by the same
// transition table that admitted the original call.
type State int

const (
	// StateStart is the state of a freshly created endpoint.
	StateStart State = iota

	// StateHandshake means Hello is in progress.
	StateHandshake

	// StateDataRW is the established state: both directions open.
	StateDataRW

	// StateDataR means the write side was closed locally; reads remain.
	StateDataR

	// StateDataW means the peer closed its write side; writes remain.
	StateDataW

	// StateDataRS means a switch was initiated here and only reads are
	// allowed until the peer answers.
	StateDataRS

	// StateSwitching means a switch request is being sent, or the peer
	// accepted our switch and Hello must complete it.
	StateSwitching

	// StateAccepting means AcceptSwitch is driving the renegotiation
	// handshake.
	StateAccepting

	// StateRefusing means RefuseSwitch is sending the no_renegotiation
	// alert. A failure other than a suspension leaves the endpoint here.
	StateRefusing

	// StateEnd is terminal: the session is closed or was stashed.
	StateEnd
)

var stateNames = [...]string{
	"Start", "Handshake", "DataRW", "DataR", "DataW",
	"DataRS", "Switching", "Accepting", "Refusing", "End",
}

// String returns the state's name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Invalid"
	}
	return stateNames[s]
}

// Endpoint operations, for transition-table lookup and error reporting.
type operation string

const (
	opHello        operation = "hello"
	opBye          operation = "bye"
	opVerify       operation = "verify"
	opSwitch       operation = "switch"
	opAcceptSwitch operation = "accept_switch"
	opRefuseSwitch operation = "refuse_switch"
	opSend         operation = "send"
	opRecv         operation = "recv"
)

// allowedStates is the permitted-transition table. An operation invoked
// outside its row fails with UnexpectedStateError and has no effect.
var allowedStates = map[operation][]State{
	opHello:        {StateStart, StateHandshake, StateSwitching},
	opBye:          {StateDataRW, StateDataR, StateDataW},
	opVerify:       {StateDataRW, StateDataR, StateDataW, StateDataRS},
	opSwitch:       {StateDataRW, StateDataW, StateSwitching},
	opAcceptSwitch: {StateDataRW, StateDataW, StateAccepting},
	opRefuseSwitch: {StateDataRW, StateDataW, StateRefusing},
	opSend:         {StateDataRW, StateDataW},
	opRecv:         {StateDataRW, StateDataR, StateDataRS},
}

// permitted reports whether op may run in state s.
func permitted(op operation, s State) bool {
	for _, allowed := range allowedStates[op] {
		if s == allowed {
			return true
		}
	}
	return false
}
