// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package enginetest

import (
	"bytes"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// pipeBuf is one direction of a Pipe.
type pipeBuf struct {
	bytes.Buffer
	closed bool
}

// PipeEnd is one end of an in-memory, non-blocking duplex byte channel.
// Read and Write have the transport-callback signatures expected by
// endpoints: a read on an empty pipe reports would-block rather than
// blocking, and EOF once the peer closed. Ends are not safe for
// concurrent use; drive them from one goroutine like the endpoints
// themselves.
type PipeEnd struct {
	in  *pipeBuf
	out *pipeBuf

	failReads  int
	failWrites int
}

// NewPipe returns the two connected ends of a fresh pipe.
func NewPipe() (*PipeEnd, *PipeEnd) {
	atob := &pipeBuf{}
	btoa := &pipeBuf{}
	a := &PipeEnd{in: btoa, out: atob}
	b := &PipeEnd{in: atob, out: btoa}
	return a, b
}

// FailNextReads makes the next n Read calls report would-block even when
// data is available, to exercise suspension paths.
func (e *PipeEnd) FailNextReads(n int) {
	e.failReads = n
}

// FailNextWrites makes the next n Write calls report would-block.
func (e *PipeEnd) FailNextWrites(n int) {
	e.failWrites = n
}

// Read fills p with buffered bytes. It returns 0, nil once the peer
// closed and the buffer drained, and would-block when no data is ready.
func (e *PipeEnd) Read(p []byte) (int, error) {
	if e.failReads > 0 {
		e.failReads--
		return 0, engine.ErrTransportAgain
	}
	if e.in.Len() > 0 {
		return e.in.Read(p)
	}
	if e.in.closed {
		return 0, nil
	}
	return 0, engine.ErrTransportAgain
}

// Write appends p to the peer's read buffer.
func (e *PipeEnd) Write(p []byte) (int, error) {
	if e.failWrites > 0 {
		e.failWrites--
		return 0, engine.ErrTransportAgain
	}
	e.out.Write(p)
	return len(p), nil
}

// Close marks this end's write direction closed; the peer sees EOF after
// draining buffered bytes.
func (e *PipeEnd) Close() {
	e.out.closed = true
}
