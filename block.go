// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import "unsafe"

// noUsedLimit marks a Block as the current allocation block of its
// space: the current allocation block of every space always has
// usedLimit unset.
const noUsedLimit = ^uintptr(0)

// headerReserveWords is the fixed header area reserved at the front
// of every block's memory, rounded up to object alignment. The
// collector's own bookkeeping for a block (Block, below) lives in a
// regular Go struct rather than overlaid on this memory -- Go gives
// no portable way to place an arbitrary struct at a raw allocated
// address -- but the reserved region is kept so that payload
// offsets and used-byte accounting always begin after the rounded-up
// header.
const headerReserveWords = 4

// Allocator is the platform collaborator external to the core: it
// hands back naturally aligned, fixed-size memory. A production
// embedder backs this with an aligned mmap; the
// DefaultAllocator below is a pure-Go stand-in suitable for an
// in-process heap and for tests.
type Allocator interface {
	// Acquire returns exactly size bytes whose first address is a
	// multiple of size.
	Acquire(size uintptr) []byte
	// Release returns mem, previously produced by Acquire, to the
	// platform. The default allocator treats this as a no-op and
	// lets the host Go GC reclaim the backing array.
	Release(mem []byte)
}

// DefaultAllocator over-allocates 2x and rounds up to find an
// aligned sub-slice, the standard trick for aligned allocation
// without a dedicated platform call.
type DefaultAllocator struct{}

func (DefaultAllocator) Acquire(size uintptr) []byte {
	raw := make([]byte, size*2)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (addr + size - 1) &^ (size - 1)
	off := aligned - addr
	return raw[off : off+size : off+size]
}

func (DefaultAllocator) Release([]byte) {}

// Block is a fixed-size, naturally aligned memory region: a linked
// list node within its owning Space plus the payload bytes objects
// are allocated from. Every field not named "mem" corresponds to a
// logical block-header field; mem is the block's raw word storage.
type Block struct {
	mem        []byte
	space      *Space
	generation Generation
	prev, next *Block
	usedLimit  uintptr // payload-relative offset, or noUsedLimit
	base       uintptr
}

func payloadStart() uintptr { return headerReserveWords * wordSize }

func (b *Block) payloadEnd() uintptr { return uintptr(len(b.mem)) }

// blockAcquire reuses a block from
// the heaplet's unused pool if one exists, else asks the platform
// allocator and registers the new block for blockOf lookups.
func blockAcquire(hl *Heaplet) *Block {
	if b := hl.unused.unlinkHead(); b != nil {
		b.usedLimit = noUsedLimit
		return b
	}
	mem := hl.heap.allocator.Acquire(hl.heap.cfg.BlockSize)
	b := &Block{mem: mem, base: uintptr(unsafe.Pointer(&mem[0])), usedLimit: noUsedLimit}
	hl.heap.registerBlock(b)
	return b
}

// blockRelease unregisters a block and hands its memory back to the
// platform allocator. Called when a heaplet (or the heap) is
// destroyed, and by trimUnusedPool after a major collection to free
// surplus unused blocks; otherwise, during collection, blocks move to
// the unused pool instead.
func blockRelease(h *Heap, b *Block) {
	h.unregisterBlock(b)
	h.allocator.Release(b.mem)
}

// registerBlock/unregisterBlock/blockOf let any heap pointer's block
// be found by masking low bits: the mask yields the block's aligned
// base address, which this side table maps to the Block. A real
// inline-header implementation would need no table; copygc uses one
// because block bookkeeping lives in a Go struct rather than in the
// block's memory (see headerReserveWords).
func (h *Heap) registerBlock(b *Block) {
	h.blockMu.Lock()
	h.blockIndex[b.base] = b
	h.blockMu.Unlock()
}

func (h *Heap) unregisterBlock(b *Block) {
	h.blockMu.Lock()
	delete(h.blockIndex, b.base)
	h.blockMu.Unlock()
}

// blockOf returns the Block that addr (an untagged heap address)
// falls within, implementing testable property 5 (block alignment).
func (h *Heap) blockOf(addr uintptr) *Block {
	base := addr &^ (h.cfg.BlockSize - 1)
	h.blockMu.RLock()
	b := h.blockIndex[base]
	h.blockMu.RUnlock()
	return b
}
