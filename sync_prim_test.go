// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBlockWakeRoundTrip(t *testing.T, p syncPrimitive) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.block()
		close(done)
	}()

	// Give block() a moment to actually park before waking it, so this
	// exercises the wait path rather than a racing wake-before-block.
	time.Sleep(10 * time.Millisecond)
	p.wake()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("block() never returned after wake()")
	}
}

func TestNewSyncPrimitiveCond(t *testing.T) {
	p := newSyncPrimitive(SyncTierCond)
	_, ok := p.(*condPrimitive)
	assert.True(t, ok)
	testBlockWakeRoundTrip(t, p)
}

func TestNewSyncPrimitiveAutoDefaultsToCond(t *testing.T) {
	p := newSyncPrimitive(SyncTierAuto)
	_, ok := p.(*condPrimitive)
	assert.True(t, ok)
}

func TestNewSyncPrimitiveSemaphore(t *testing.T) {
	p := newSyncPrimitive(SyncTierSemaphore)
	_, ok := p.(*semPrimitive)
	assert.True(t, ok)
	testBlockWakeRoundTrip(t, p)
}

// TestNewSyncPrimitiveUnix checks that SyncTierUnix either returns a
// working eventfd-backed primitive (on a unix build where eventfd
// succeeds) or falls back to the condition-variable tier; either way
// the returned primitive must satisfy a full block/wake round trip.
func TestNewSyncPrimitiveUnix(t *testing.T) {
	p := newSyncPrimitive(SyncTierUnix)
	testBlockWakeRoundTrip(t, p)
}

func TestUnixEventPrimitiveForTierReachable(t *testing.T) {
	p, ok := newUnixEventPrimitiveForTier()
	if !ok {
		return
	}
	testBlockWakeRoundTrip(t, p)
}
