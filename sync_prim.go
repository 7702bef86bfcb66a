// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// syncPrimitive is the per-heaplet blocking primitive used during
// global collection coordination: block() parks the calling goroutine
// until another heaplet's wake() call; it has exactly two legal
// callers per cycle (the heaplet itself, and whichever heaplet runs
// the global collection on its behalf) and is never used outside the
// heap-lock protocol in heap.go, which already guarantees block() is
// called with the lock released and wake() with it held.
//
// copygc follows a "prefer standard mutex + condition variable; fall
// back to POSIX equivalents; fall back to anonymous semaphores"
// three-tier policy, chosen per heaplet by Config.SyncTier rather than
// a single hardcoded tier: see newSyncPrimitive.
type syncPrimitive interface {
	block()
	wake()
}

// SyncTier selects which tier of the synchronization shim a heaplet
// uses. See newSyncPrimitive for the fallback rules.
type SyncTier uint8

const (
	// SyncTierAuto picks the preferred tier: mutex + condition
	// variable. This is the zero value, so a zero Config defaults to
	// it without the embedder naming a tier explicitly.
	SyncTierAuto SyncTier = iota
	// SyncTierCond forces the mutex + condition variable tier.
	SyncTierCond
	// SyncTierUnix forces the POSIX eventfd tier (golang.org/x/sys/unix).
	// On a non-unix build, or if the eventfd syscall itself fails, it
	// falls back to the condition-variable tier.
	SyncTierUnix
	// SyncTierSemaphore forces the anonymous-semaphore tier
	// (golang.org/x/sync/semaphore), for embedders that want no
	// dependency on any platform condition variable or file
	// descriptor.
	SyncTierSemaphore
)

// newSyncPrimitive builds the block/wake primitive for tier. Only
// SyncTierUnix and SyncTierSemaphore reach for anything beyond
// sync.Cond; SyncTierAuto and SyncTierCond both return the
// condition-variable tier, since sync.Cond has no platform-specific
// unavailability the way raw POSIX primitives do.
func newSyncPrimitive(tier SyncTier) syncPrimitive {
	switch tier {
	case SyncTierUnix:
		if p, ok := newUnixEventPrimitiveForTier(); ok {
			return p
		}
		return newCondPrimitive()
	case SyncTierSemaphore:
		return newSemPrimitive()
	default:
		return newCondPrimitive()
	}
}
