// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sharingTestConfig() Config {
	cfg := testConfig()
	cfg.ShareEnabled = true
	return cfg
}

// TestShareMigratesToSharedSpace checks that Share moves an object
// out of the heaplet's own generations and into the heap's global
// shared space, leaving the caller's slot pointing at a live object.
func TestShareMigratesToSharedSpace(t *testing.T) {
	h, hl := newTestHeaplet(sharingTestConfig())

	obj := allocPair(hl, Word(0))
	require.Equal(t, GenYoung, h.blockOf(obj.Pointer()).generation)

	slot := obj
	Share(hl, &slot)

	assert.Equal(t, GenShared, h.blockOf(slot.Pointer()).generation)
	assert.Equal(t, Word(0), pairField(hl, slot))
}

// TestShareBarrierPullsInReachableObjects checks that writing a
// young pointer into an already-shared object's field pulls the
// object being written (the new pointee) into the shared generation
// too, preserving the
// invariant that nothing reachable from a shared object is itself
// unshared.
func TestShareBarrierPullsInReachableObjects(t *testing.T) {
	h, hl := newTestHeaplet(sharingTestConfig())

	young := allocPair(hl, Word(0))
	shared := allocPair(hl, Word(0))
	sharedSlot := shared
	Share(hl, &sharedSlot)
	require.Equal(t, GenShared, h.blockOf(sharedSlot.Pointer()).generation)

	ShareBarrierSlowPath(hl, GenShared, &young)

	assert.Equal(t, GenShared, h.blockOf(young.Pointer()).generation)
}

// TestShareFollowUpCollectionKeepsFieldsConsistent checks the
// mandatory consistency collection Share runs after the share
// collection itself: an object sharing survives into the shared
// space, and a subsequent ordinary collection on the heaplet's own
// generations does not disturb the shared copy or the field values
// reachable through it.
func TestShareFollowUpCollectionKeepsFieldsConsistent(t *testing.T) {
	h, hl := newTestHeaplet(sharingTestConfig())

	inner := allocPair(hl, Word(7))
	outer := allocPair(hl, inner)

	slot := outer
	Share(hl, &slot)
	require.Equal(t, GenShared, h.blockOf(slot.Pointer()).generation)

	innerAfterShare := pairField(hl, slot)
	require.Equal(t, GenShared, h.blockOf(innerAfterShare.Pointer()).generation)
	require.Equal(t, Word(7), pairField(hl, innerAfterShare))

	// A further ordinary collection on the heaplet's own spaces must
	// leave the already-shared subgraph untouched: the shared copy
	// isn't a root of this heaplet's minor collection, so it is
	// neither scavenged nor disturbed.
	collect(hl, KindMinor)

	assert.Equal(t, GenShared, h.blockOf(slot.Pointer()).generation)
	assert.Equal(t, innerAfterShare, pairField(hl, slot))
	assert.Equal(t, Word(7), pairField(hl, innerAfterShare))
}
