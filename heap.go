// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"sync"

	"copygc/internal/gclog"
)

// request is the heap-wide one-word pending-request flag.
type request uint8

const (
	requestNone request = iota
	requestGlobalGC
)

// Heap is a container of heaplets: it owns the global shared space
// and coordinates global collections under a single lock.
type Heap struct {
	cfg       Config
	shapes    *ShapeTable
	log       *gclog.Logger
	allocator Allocator

	blockMu    sync.RWMutex
	blockIndex map[uintptr]*Block

	mu      sync.Mutex
	request request

	shared *Space

	inUse    []*Heaplet
	notInUse []*Heaplet
}

// NewHeap creates a heap for the given shape table.
func NewHeap(cfg Config, shapes *ShapeTable, log *gclog.Logger, allocator Allocator) *Heap {
	if allocator == nil {
		allocator = DefaultAllocator{}
	}
	h := &Heap{
		cfg:        cfg,
		shapes:     shapes,
		log:        log,
		allocator:  allocator,
		blockIndex: make(map[uintptr]*Block),
		shared:     newSpace("shared", GenShared),
	}
	return h
}

// DestroyHeap finalizes objects remaining in the shared space, and
// releases every block still on
// it. Callers must have already destroyed every heaplet.
func DestroyHeap(h *Heap) {
	finalizeAllNoTrace(h.shared)
	for b := h.shared.head; b != nil; {
		next := b.next
		blockRelease(h, b)
		b = next
	}
}

func (h *Heap) lock()   { h.mu.Lock() }
func (h *Heap) unlock() { h.mu.Unlock() }

func (h *Heap) addHeaplet(hl *Heaplet) {
	h.mu.Lock()
	h.inUse = append(h.inUse, hl)
	h.mu.Unlock()
}

func (h *Heap) removeHeaplet(hl *Heaplet) {
	h.mu.Lock()
	h.inUse = removeHeapletFrom(h.inUse, hl)
	h.notInUse = removeHeapletFrom(h.notInUse, hl)
	h.mu.Unlock()
}

func removeHeapletFrom(list []*Heaplet, hl *Heaplet) []*Heaplet {
	for i, x := range list {
		if x == hl {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// RequestGlobalCollection acquires the heap lock, marks a pending
// request, then runs the same check every safe point runs.
func (h *Heap) RequestGlobalCollection(this *Heaplet) {
	h.mu.Lock()
	h.request = requestGlobalGC
	h.globalGCIfNeededAndUnlock(this)
}

// globalGCIfNeededAndUnlock checks for a pending global-collection
// request and runs it once every heaplet has stepped aside. The heap
// lock must be held on entry; every return path releases it.
func (h *Heap) globalGCIfNeededAndUnlock(this *Heaplet) {
	if h.request == requestNone {
		h.mu.Unlock()
		return
	}

	wasInUse := this.usedState == stateInUse
	if wasInUse {
		h.inUse = removeHeapletFrom(h.inUse, this)
		h.notInUse = append(h.notInUse, this)
		if len(h.inUse) > 0 {
			this.usedState = stateToBeWokenUp
			h.mu.Unlock()
			this.sync.block()
			return
		}
	}
	if len(h.inUse) > 0 {
		h.mu.Unlock()
		return
	}

	h.runGlobalCollection()
	h.request = requestNone

	// this is the heaplet that performed the collection, either
	// because it was the only one in use or because it was the last
	// to step aside; it sits in h.notInUse alongside the peers woken
	// below, so it needs the same inUse/stateInUse restoration they get.
	if wasInUse {
		this.usedState = stateInUse
		h.notInUse = removeHeapletFrom(h.notInUse, this)
		h.inUse = append(h.inUse, this)
	}

	stillNotInUse := make([]*Heaplet, 0, len(h.notInUse))
	for _, other := range h.notInUse {
		if other.usedState == stateToBeWokenUp {
			other.usedState = stateInUse
			h.inUse = append(h.inUse, other)
			other.sync.wake()
		} else {
			stillNotInUse = append(stillNotInUse, other)
		}
	}
	h.notInUse = stillNotInUse

	h.mu.Unlock()
}

// runGlobalCollection performs a global collection over every
// not-in-use heaplet: each is traced as its own root source. Every
// tospace in the old generation conceptually shares a destination --
// implemented here as an ordinary KindGlobal collection run
// independently per heaplet, since each heaplet already owns its own
// old-reserve as that destination.
func (h *Heap) runGlobalCollection() {
	for _, hl := range h.notInUse {
		prev := hl.usedState
		hl.usedState = stateCollecting
		collect(hl, KindGlobal)
		hl.usedState = prev
	}
}

// BeforeBlocking / AfterBlocking: a heaplet voluntarily parking for
// I/O transitions out of in-use so it cannot
// block a pending global collection, and back in afterward, checking
// for a pending request both times.
func (h *Heap) BeforeBlocking(hl *Heaplet) {
	h.mu.Lock()
	hl.usedState = stateNotToBeWokenUp
	h.inUse = removeHeapletFrom(h.inUse, hl)
	h.notInUse = append(h.notInUse, hl)
	h.globalGCIfNeededAndUnlock(hl)
}

func (h *Heap) AfterBlocking(hl *Heaplet) {
	h.mu.Lock()
	hl.usedState = stateInUse
	h.notInUse = removeHeapletFrom(h.notInUse, hl)
	h.inUse = append(h.inUse, hl)
	h.globalGCIfNeededAndUnlock(hl)
}

// SafePoint is called periodically by mutators so a pending
// global-collection request is serviced.
func (h *Heap) SafePoint(hl *Heaplet) {
	h.mu.Lock()
	h.globalGCIfNeededAndUnlock(hl)
}
