// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import "time"

// Kind identifies which collection strategy collect() runs, plus the
// ssb_flush pseudo-kind which is not itself a collection but shares
// the Kind type for hook signatures.
type Kind uint8

const (
	KindMinor Kind = iota
	KindMajor
	KindGlobal
	KindShare
	KindSSBFlush
)

func (k Kind) String() string {
	switch k {
	case KindMinor:
		return "minor"
	case KindMajor:
		return "major"
	case KindGlobal:
		return "global"
	case KindShare:
		return "share"
	case KindSSBFlush:
		return "ssb_flush"
	default:
		return "kind?"
	}
}

// Action is the set of requests the slow allocation path accepts.
type Action uint8

const (
	ActionDefault Action = iota
	ActionBlockChange
	ActionForceMinor
	ActionForceMajor
	ActionForceEither
	ActionForceGlobal
	ActionShare
)

func (a Action) String() string {
	switch a {
	case ActionDefault:
		return "default"
	case ActionBlockChange:
		return "block_change"
	case ActionForceMinor:
		return "force_minor"
	case ActionForceMajor:
		return "force_major"
	case ActionForceEither:
		return "force_either"
	case ActionForceGlobal:
		return "force_global"
	case ActionShare:
		return "share"
	default:
		return "action?"
	}
}

type HookFunc func(kind Kind)

// collection carries the transient, per-collection state tracked on
// Space (destination, scavengedFrom, clean flags) plus the driver's
// own bookkeeping. It is created fresh for every collect() call.
type Collection struct {
	hl   *Heaplet
	kind Kind

	fromspaces []*Space
	tospaces   []*Space

	start                    time.Time
	initialUsed              map[*Space]uint64
	initialRememberedSetSize int
}

// collect runs a single collection of the given kind on hl: it picks
// destinations, scavenges roots and the remembered set to a fixed
// point, drains finalization candidates, and reclaims clean spaces.
func collect(hl *Heaplet, kind Kind) {
	c := &Collection{hl: hl, kind: kind, start: time.Now(), initialUsed: map[*Space]uint64{}}

	for _, s := range hl.allSpaces() {
		c.initialUsed[s] = s.usedSizeInBytes()
	}

	setupSpaces(c)

	cleanSpaces(c, spacesToCleanBefore(c))
	resetScanCursors(c)
	harvestFinalizables(c)
	c.initialRememberedSetSize = hl.rememberedSet.Len()

	handleRoots(c)
	scavenge(c)

	if kind != KindShare {
		partitionFinalizables(hl)
		for hl.candidateDeadFinalizables.len > 0 {
			before := hl.candidateDeadFinalizables.len
			runFinalizationPipeline(c)
			if hl.candidateDeadFinalizables.len >= before {
				break
			}
		}
	}

	if kind == KindMajor || kind == KindGlobal {
		rebuildRememberedSet(hl)
	}

	finalUsed := map[*Space]uint64{}
	for _, s := range hl.allSpaces() {
		finalUsed[s] = s.usedSizeInBytes()
	}

	cleanSpaces(c, spacesToCleanAfter(c))
	flipSpaces(c)

	if kind != KindShare {
		updateHeuristics(hl, kind, c, c.initialUsed, finalUsed)
	}

	if kind != KindShare {
		for _, h := range hl.postCollectionHooks {
			h(kind)
		}
	}

	hl.tempRoots.Compact()
	if kind == KindMajor {
		trimUnusedPool(hl)
	}

	recordStats(hl, kind, c, finalUsed)
}

// spacesToCleanBefore/After and setupSpaces decide which spaces this
// collection will empty, and pick each space's evacuation destination.
func setupSpaces(c *Collection) {
	hl := c.hl
	for _, s := range hl.allSpaces() {
		s.destination = nil
		s.scavengedFrom = false
		s.cleanBefore, s.cleanAfter, s.cleanKeepOne = false, false, false
	}

	switch c.kind {
	case KindMinor, KindMajor, KindGlobal:
		for _, r := range hl.ageingReserve {
			r.cleanBefore, r.cleanKeepOne = true, true
		}
		hl.nursery.cleanAfter, hl.nursery.cleanKeepOne = true, true
		for _, a := range hl.ageing {
			a.cleanAfter = true
		}

		terminal := hl.oldspace
		if c.kind == KindMajor || c.kind == KindGlobal {
			terminal = hl.oldReserve
		}
		n := len(hl.ageing) // N
		if n > 0 {
			hl.nursery.destination = hl.ageingReserve[0]
		} else {
			hl.nursery.destination = terminal
		}
		c.fromspaces = append(c.fromspaces, hl.nursery)
		c.tospaces = append(c.tospaces, hl.nursery.destination)
		for i := 0; i < n; i++ {
			if i < n-1 {
				hl.ageing[i].destination = hl.ageingReserve[i+1]
			} else {
				hl.ageing[i].destination = terminal
			}
			c.fromspaces = append(c.fromspaces, hl.ageing[i])
			c.tospaces = append(c.tospaces, hl.ageing[i].destination)
		}

		if c.kind == KindMajor || c.kind == KindGlobal {
			hl.oldspace.destination = hl.oldReserve
			c.fromspaces = append(c.fromspaces, hl.oldspace)
			c.tospaces = append(c.tospaces, hl.oldReserve)
			hl.oldReserve.cleanBefore, hl.oldReserve.cleanKeepOne = true, true
			hl.oldspace.cleanAfter = true
		}

	case KindShare:
		dest := hl.sharedOwn
		for _, r := range hl.ageingReserve {
			r.cleanBefore = true
		}
		hl.oldReserve.cleanBefore = true
		hl.nursery.destination = dest
		c.fromspaces = append(c.fromspaces, hl.nursery)
		c.tospaces = append(c.tospaces, dest)
		for _, a := range hl.ageing {
			a.destination = dest
			c.fromspaces = append(c.fromspaces, a)
			c.tospaces = append(c.tospaces, dest)
		}
		hl.oldspace.destination = dest
		c.fromspaces = append(c.fromspaces, hl.oldspace)
		c.tospaces = append(c.tospaces, dest)
	}
}

func spacesToCleanBefore(c *Collection) []*Space {
	var out []*Space
	for _, s := range c.hl.allSpaces() {
		if s.cleanBefore {
			out = append(out, s)
		}
	}
	return out
}

func spacesToCleanAfter(c *Collection) []*Space {
	var out []*Space
	for _, s := range c.hl.allSpaces() {
		if s.cleanAfter {
			out = append(out, s)
		}
	}
	return out
}

// cleanSpaces implements "move their blocks into the unused pool;
// restore one block if not clean-completely so they can serve at
// once".
func cleanSpaces(c *Collection, spaces []*Space) {
	for _, s := range spaces {
		moveToFrom(c.hl.unused, s, true, true, true)
		if s.cleanKeepOne {
			s.procureAllocationBlock(c.hl)
		}
	}
}

// resetScanCursors implements "reset scan cursors for every tospace
// so post-root-copy scanning begins exactly where the allocation
// pointer sits".
func resetScanCursors(c *Collection) {
	for _, s := range uniqueSpaces(c.tospaces) {
		if s.allocBlock == nil {
			s.procureAllocationBlock(c.hl)
		}
		s.setScanBlock(s.allocBlock, true)
		s.allocBlock.usedLimit = noUsedLimit
	}
}

func uniqueSpaces(in []*Space) []*Space {
	seen := map[*Space]bool{}
	var out []*Space
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// harvestFinalizables implements "splice every fromspace's
// mutation-time finalizable list into candidate_dead_finalizables".
func harvestFinalizables(c *Collection) {
	for _, s := range uniqueSpaces(c.fromspaces) {
		c.hl.candidateDeadFinalizables.appendAll(s.finalizables)
	}
}

// handleRoots traces only the objectsBeingShared buffer for a share
// collection. For the other kinds it runs the pre-collection hooks,
// scavenges every global and temporary root slot, and for a minor
// collection also traces the remembered set.
func handleRoots(c *Collection) {
	hl := c.hl
	if c.kind == KindShare {
		for i := range hl.objectsBeingShared {
			handleWord(c, &hl.objectsBeingShared[i])
		}
		return
	}

	for _, h := range hl.preCollectionHooks {
		h(c.kind)
	}

	hl.globalRoots.ForEachSlot(func(slot *Word) { handleWord(c, slot) })
	hl.tempRoots.ForEachSlot(func(slot *Word) { handleWord(c, slot) })

	if c.kind == KindMinor {
		hl.rememberedSet.Each(func(w Word) {
			traceRememberedEntry(c, w)
		})
	}
}

// traceRememberedEntry scans an old-generation object reachable via
// the remembered set in place (it stays in old space), using its
// shape's ObjectUpdateFields exactly as scan_next would for a
// headerful object reached during the normal sweep.
func traceRememberedEntry(c *Collection, w Word) {
	if w.IsImmediate() {
		return
	}
	h := c.hl.heap
	b := h.blockOf(w.Pointer())
	if b == nil {
		return
	}
	off := w.Pointer() - b.base
	header := readWord(b.mem, off)
	shape, ok := c.hl.shapes.ShapeByTypeCode(header)
	if !ok || shape == nil || shape.ObjectUpdateFields == nil {
		return
	}
	shape.ObjectUpdateFields(c, b.mem, off)
}

// flipSpaces implements step 14: swap ageing-step spaces with their
// reserves, and (major and global) oldspace with old-reserve.
func flipSpaces(c *Collection) {
	if c.kind == KindShare {
		return
	}
	hl := c.hl
	n := len(hl.ageing)
	for i := 0; i < n; i++ {
		hl.ageing[i], hl.ageingReserve[i] = hl.ageingReserve[i], hl.ageing[i]
	}
	if c.kind == KindMajor || c.kind == KindGlobal {
		hl.oldspace, hl.oldReserve = hl.oldReserve, hl.oldspace
	}
}

// partitionFinalizables splits the harvested finalizable candidates
// into survivors (re-registered at their forwarded address in the
// destination space) and confirmed candidates for the finalization
// pipeline, the step implicit between collect()'s scavenge and
// finalize stages of collect().
func partitionFinalizables(hl *Heaplet) {
	remaining := newFinalizableList()
	n := hl.candidateDeadFinalizables.head
	for n != nil {
		next := n.next
		hl.candidateDeadFinalizables.unlink(n)
		if objectIsBrokenHeart(hl, n.ptr) {
			fwd := followBrokenHeart(hl.heap, n.ptr)
			if b := hl.heap.blockOf(fwd.Pointer()); b != nil {
				b.space.finalizables.register(fwd.Pointer(), n.shape)
			}
		} else {
			remaining.register(n.ptr, n.shape)
		}
		n = next
	}
	hl.candidateDeadFinalizables = remaining
}

func followBrokenHeart(h *Heap, ptr uintptr) Word {
	b := h.blockOf(ptr)
	off := ptr - b.base
	return Word(readWord(b.mem, off+wordSize))
}
