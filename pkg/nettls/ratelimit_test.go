// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandshakeLimiter_Burst(t *testing.T) {
	hl := NewHandshakeLimiter(1.0, 3, time.Minute, time.Minute)
	defer hl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, hl.Allow("10.0.0.1"), "burst attempt %d", i)
	}
	assert.False(t, hl.Allow("10.0.0.1"), "burst exhausted")

	// Other peers are unaffected.
	assert.True(t, hl.Allow("10.0.0.2"))
}

func TestHandshakeLimiter_Defaults(t *testing.T) {
	hl := NewHandshakeLimiter(0, 0, 0, 0)
	defer hl.Stop()

	assert.True(t, hl.Allow("peer"))
	hl.Stop()
	hl.Stop() // idempotent
}
