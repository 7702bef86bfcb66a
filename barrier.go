// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// SSB is the sequential store buffer: a small append-only
// queue, conceptually carved from the top of the nursery, that the
// write barrier appends to on every store of a possibly-old-to-young
// pointer. copygc keeps it as its own backing slice rather than
// literally overlaid on nursery bytes -- see DESIGN.md -- since the
// mutator's "pointer bump into shared memory" trick has no Go
// equivalent without unsafe tricks that would leak outside this file;
// the observable behavior (fixed capacity, overflow triggers a flush,
// flush returns a refreshed limit) is unchanged.
type SSB struct {
	entries     []Word
	cap         int
	flushCount  uint64
	totalQueued uint64
}

func newSSB(capWords int) *SSB {
	return &SSB{entries: make([]Word, 0, capWords), cap: capWords}
}

// Record implements the mutator-visible half of the write barrier: a
// store of a pointer into an object whose generation might be old
// pushes that object's own tagged pointer onto the SSB. It reports
// whether the SSB is now full, at which point the caller must flush
// before the next store.
func (s *SSB) Record(updated Word) (overflowed bool) {
	s.entries = append(s.entries, updated)
	return len(s.entries) >= s.cap
}

// WriteBarrier is the entry point a mutator store to a heap object's
// pointer field goes through: if updated's own generation test says
// it might already be old, its tagged pointer is queued for the SSB;
// ssbFull signals the caller must call UpdateRuntimeFields before
// continuing allocation.
func (hl *Heaplet) WriteBarrier(updated Word) (ssbFull bool) {
	if updated.IsImmediate() {
		return false
	}
	if hl.heap.generationOf(updated) != GenOld {
		return false
	}
	return hl.ssb.Record(updated)
}

// generationOf classifies w's target; immediates and pointers outside
// any registered block (e.g. statically-allocated client values) are
// treated as immortal.
func (h *Heap) generationOf(w Word) Generation {
	if w.IsImmediate() {
		return GenImmortal
	}
	b := h.blockOf(w.Pointer())
	if b == nil {
		return GenImmortal
	}
	return b.generation
}

// ssbFlush drains the SSB from newest
// to oldest, keeping only entries whose updated object is (still) in
// the old generation, then returns the heaplet's true (non-SSB)
// nursery limit. overflowed, if non-nil, is processed after the
// queue, implementing the ssb_flush_1 variant.
func ssbFlush(hl *Heaplet, overflowed *Word) uintptr {
	for _, h := range hl.preSSBFlushHooks {
		h(KindSSBFlush)
	}

	n := len(hl.ssb.entries)
	for i := n - 1; i >= 0; i-- {
		e := hl.ssb.entries[i]
		if hl.heap.generationOf(e) == GenOld {
			hl.rememberedSet.Insert(e)
		}
	}
	hl.ssb.totalQueued += uint64(n)
	hl.ssb.entries = hl.ssb.entries[:0]

	if overflowed != nil {
		if hl.heap.generationOf(*overflowed) == GenOld {
			hl.rememberedSet.Insert(*overflowed)
		}
	}

	hl.ssb.flushCount++
	limit := hl.nursery.allocBlock.base + hl.nursery.limit

	for _, h := range hl.postSSBFlushHooks {
		h(KindSSBFlush)
	}
	return limit
}

// UpdateRuntimeFields implements update_runtime_fields: the mutator's
// choke point for draining the SSB and refreshing its cached
// allocation pointer and limit (absolute addresses in the nursery's
// current allocation block), called whenever the cached pointer reaches the
// biased-down limit.
func (hl *Heaplet) UpdateRuntimeFields() (pointer, limit uintptr) {
	newLimit := ssbFlush(hl, nil)
	hl.convenienceAllocPointer = hl.nursery.allocBlock.base + hl.nursery.allocPtr
	hl.convenienceLimit = newLimit
	return hl.convenienceAllocPointer, newLimit
}

// ShareBarrierSlowPath implements share_barrier_slow_path: writing
// newPointed into a shared updated object must first make newPointed
// itself shared (unless it already is, or is immortal), so that the
// shared generation's "everything reachable from a shared object is
// itself shared" invariant never breaks.
func ShareBarrierSlowPath(hl *Heaplet, updatedGeneration Generation, newPointed *Word) {
	if !hl.heap.cfg.ShareEnabled {
		return
	}
	if updatedGeneration != GenShared {
		return
	}
	g := hl.heap.generationOf(*newPointed)
	if g == GenImmortal || g == GenShared {
		return
	}
	Share(hl, newPointed)
}
